package fetch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WhileWaiting runs work concurrently with a delay of d and returns only when
// both have finished, so the next request never starts before the delay has
// fully elapsed. work may be nil.
func WhileWaiting(ctx context.Context, d time.Duration, work func() error) error {
	g, gctx := errgroup.WithContext(ctx)
	if work != nil {
		g.Go(work)
	}
	g.Go(func() error { return Sleep(gctx, d) })
	return g.Wait()
}
