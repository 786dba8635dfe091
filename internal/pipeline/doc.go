// Package pipeline implements ordered fallback fetching.
//
// FetchBatch resolves a set of keys by running strategies in priority order.
// Each strategy is only asked for the keys still missing, and its results are
// merged without ever replacing a value produced by an earlier strategy. A
// strategy that errors, panics, times out or lacks configuration contributes
// nothing for that call and the next strategy runs. The result is a partial
// map: every requested key is either present with a valid value or absent.
package pipeline
