package sweep

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// ExpireTradesJobArgs is the periodic job that expires overdue pending
// trades. It carries no payload; each run sweeps one batch.
type ExpireTradesJobArgs struct{}

func (ExpireTradesJobArgs) Kind() string { return "expire_trades" }

// Sweeper is the contract the worker needs to run a sweep.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

type ExpireTradesWorker struct {
	river.WorkerDefaults[ExpireTradesJobArgs]
	sweeper Sweeper
	logger  *slog.Logger
}

func NewExpireTradesWorker(s Sweeper, logger *slog.Logger) *ExpireTradesWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpireTradesWorker{sweeper: s, logger: logger}
}

func (w *ExpireTradesWorker) Work(ctx context.Context, _ *river.Job[ExpireTradesJobArgs]) error {
	n, err := w.sweeper.SweepExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.logger.Info("expired overdue trades", "count", n)
	}
	return nil
}
