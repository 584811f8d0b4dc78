package generation

import (
	"context"
	"jeop3/internal/config"

	"golang.org/x/sync/errgroup"
)

// Scheduler runs n independent tasks. Each task owns result slot i, so callers keep source order
// no matter how tasks interleave.
type Scheduler interface {
	Run(ctx context.Context, n int, task func(ctx context.Context, i int))
}

// Sequential runs tasks one after another in index order.
type Sequential struct{}

func (Sequential) Run(ctx context.Context, n int, task func(ctx context.Context, i int)) {
	for i := 0; i < n; i++ {
		task(ctx, i)
	}
}

// Bounded runs at most Limit tasks at once.
type Bounded struct {
	Limit int
}

func (b Bounded) Run(ctx context.Context, n int, task func(ctx context.Context, i int)) {
	limit := b.Limit
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			task(gctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

// SchedulerFromConfig picks the scheduler named in the generation config.
func SchedulerFromConfig(cfg config.Generation) Scheduler {
	if cfg.Scheduler == "bounded" {
		return Bounded{Limit: cfg.Concurrency}
	}
	return Sequential{}
}
