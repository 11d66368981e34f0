package asyncx

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// AsyncAll runs fn over every item concurrently and returns the results in
// input order. The first error cancels the rest.
func AsyncAll[T any, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	return Map(ctx, items, 0, func(ctx context.Context, _ int, item T) (R, error) {
		return fn(ctx, item)
	})
}

// Map runs fn over items with at most limit calls in flight (no limit when
// limit <= 0). Results keep input order.
func Map[T any, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			r, err := fn(ctx, i, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
