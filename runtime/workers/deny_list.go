package workers

import (
	"context"
	"log/slog"
	"time"

	"public-feed/moderation"
)

// DenyListWorker reloads the deny-list periodically and swaps the gate's
// moderator when the terms changed. A failed load keeps the current list.
type DenyListWorker struct {
	gate      *moderation.Gate
	load      func() ([]string, error)
	normalize bool
	interval  time.Duration
	log       *slog.Logger
}

func NewDenyListWorker(gate *moderation.Gate, load func() ([]string, error), normalize bool, interval time.Duration, log *slog.Logger) *DenyListWorker {
	return &DenyListWorker{gate: gate, load: load, normalize: normalize, interval: interval, log: log}
}

func (w *DenyListWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping deny-list worker")
			return ctx.Err()
		case <-ticker.C:
			w.reload()
		}
	}
}

func (w *DenyListWorker) reload() {
	terms, err := w.load()
	if err != nil {
		w.log.Warn("Unable to load deny-list, keeping the current one", "error", err)
		return
	}
	moderator, err := moderation.NewModerator(terms, w.normalize, w.log)
	if err != nil {
		w.log.Warn("Invalid deny-list, keeping the current one", "error", err)
		return
	}
	if moderation.SameTerms(moderator.Terms(), w.gate.Terms()) {
		return
	}
	w.gate.Swap(moderator)
	w.log.Info("Deny-list reloaded", "terms", len(moderator.Terms()))
}
