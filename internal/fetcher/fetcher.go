package fetcher

import "context"

// Fetcher is the unit of work handed to the coordinator.
// Each fetcher knows how to retrieve one piece of upstream data
// and names itself with a hierarchical key used in logs and results.
type Fetcher[T any] interface {
	// Fetch retrieves the data. Returns an error if the fetch operation fails.
	Fetch(ctx context.Context) (T, error)

	// Key returns a hierarchical key for this fetcher.
	// Format: {kind}:{source}
	// Examples:
	//   - feed:BBC World
	//   - disasters:eonet
	Key() string
}

// Func adapts a key and a function into a Fetcher.
func Func[T any](key string, fn func(ctx context.Context) (T, error)) Fetcher[T] {
	return &funcFetcher[T]{key: key, fn: fn}
}

type funcFetcher[T any] struct {
	key string
	fn  func(ctx context.Context) (T, error)
}

func (f *funcFetcher[T]) Fetch(ctx context.Context) (T, error) { return f.fn(ctx) }

func (f *funcFetcher[T]) Key() string { return f.key }
