package pipeline

import (
	"context"
)

// Source is one whole-list provider in a FirstOf chain.
type Source[T any] struct {
	Name  string
	Fetch func(ctx context.Context) ([]T, error)
}

const firstOfKey = "items"

// FirstOf returns the first non-empty list produced by sources, in order.
func FirstOf[T any](ctx context.Context, sources []Source[T], opts ...Option) ([]T, Report) {
	strategies := make([]Strategy[string, []T], 0, len(sources))
	for _, src := range sources {
		src := src
		strategies = append(strategies, Func(src.Name, func(ctx context.Context, _ []string) (map[string][]T, error) {
			items, err := src.Fetch(ctx)
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				return nil, nil
			}
			return map[string][]T{firstOfKey: items}, nil
		}))
	}

	result, report := Run(ctx, []string{firstOfKey}, strategies, opts...)
	return result[firstOfKey], report
}
