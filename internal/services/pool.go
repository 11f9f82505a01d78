package services

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// maxBulkWorkers caps concurrency of bulk operations.
const maxBulkWorkers = 8

// newLimiter paces bulk items at perSecond; zero or less disables pacing.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

func clampWorkers(workers int) int {
	if workers < 1 {
		return 1
	}
	if workers > maxBulkWorkers {
		return maxBulkWorkers
	}
	return workers
}

// runBounded calls fn for indexes 0..n-1 on at most workers goroutines,
// starting items no faster than limiter allows. Each item runs start to
// finish on one goroutine, so per-item side effects stay ordered. It stops
// launching items once ctx is done and returns the context error.
func runBounded(ctx context.Context, n, workers int, limiter *rate.Limiter, fn func(ctx context.Context, i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(clampWorkers(workers))
	for i := 0; i < n; i++ {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				_ = g.Wait()
				return err
			}
		} else if err := gctx.Err(); err != nil {
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			fn(gctx, i)
			return nil
		})
	}
	return g.Wait()
}
