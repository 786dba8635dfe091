package fetcher

// Result represents the outcome of a fetch operation.
// It's designed to be sent through channels from worker goroutines
// to a coordinator that collects them.
type Result[T any] struct {
	// Key is the hierarchical key of the fetcher that produced this result
	Key string

	// Value is the fetched data
	Value T

	// Error contains any error that occurred during the fetch operation.
	// If Error is not nil, Value should be considered invalid.
	Error error
}

// OK reports whether the fetch succeeded.
func (r Result[T]) OK() bool {
	return r.Error == nil
}
