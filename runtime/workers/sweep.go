package workers

import (
	"context"
	"log/slog"
	"time"
)

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepWorker schedules retention sweeps. A failed sweep is logged and
// retried on the next tick.
type SweepWorker struct {
	sweeper  Sweeper
	interval time.Duration
	log      *slog.Logger
}

func NewSweepWorker(sweeper Sweeper, interval time.Duration, log *slog.Logger) *SweepWorker {
	return &SweepWorker{sweeper: sweeper, interval: interval, log: log}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			removed, err := w.sweeper.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.log.Warn("Retention sweep failed", "removed", removed, "error", err)
				continue
			}
			if removed > 0 {
				w.log.Debug("Retention sweep", "removed", removed)
			}
		}
	}
}
