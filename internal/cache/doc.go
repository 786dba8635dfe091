// Package cache provides a TTL-keyed record cache that decouples consumers
// from upstream latency and availability.
//
// Each logical key maps to one durable record, stored under a fixed-length
// identifier derived from a hash of the key. A record holds the key, the time
// it was written and the JSON-serialized value. Expiry is computed at read
// time: a record is fresh while now - StoredAt < ttl. Records are never
// deleted; a newer write supersedes the old one atomically.
//
// Reads degrade to a miss on any problem: a missing record, an unreadable or
// torn record, a record written for a different key, or a value that does not
// decode into the caller's type. Writes are best effort; failures are logged
// and reported to the caller but never affect the value handed back by
// GetOrFetch.
//
// GetOrFetch prefers stale-but-present data over none: a failing fetch leaves
// the previous record untouched, and empty results are never stored.
package cache
