// Package retention trims the stored feed to its window.
package retention

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"public-feed/contract"
	"public-feed/domain"
	"public-feed/errors"
	"public-feed/observability"
)

const DefaultBatchSize = 100

// Sweeper removes every message beyond the newest maxMessages, media first.
// A media object that cannot be deleted is logged and left behind, the
// message is removed anyway.
type Sweeper struct {
	messages    contract.MessageStore
	medias      contract.MediaStore
	maxMessages int
	batch       int
	log         *slog.Logger
	metrics     *observability.Metrics
}

func NewSweeper(messages contract.MessageStore, medias contract.MediaStore, maxMessages int, log *slog.Logger, metrics *observability.Metrics) (*Sweeper, error) {
	if maxMessages < 1 {
		return nil, fmt.Errorf("retention: max messages must be at least 1, got %d", maxMessages)
	}
	return &Sweeper{
		messages:    messages,
		medias:      medias,
		maxMessages: maxMessages,
		batch:       DefaultBatchSize,
		log:         log,
		metrics:     metrics,
	}, nil
}

// Sweep returns the number of messages it removed. With nothing over the
// window it performs no write and returns 0.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	removed, orphans := 0, 0
	defer func() { s.metrics.Swept(removed, orphans) }()

	// ids already handled, a store that keeps listing them makes no progress
	seen := make(map[string]struct{})
	for {
		page, err := s.messages.ListNewestFirst(ctx, s.maxMessages+s.batch)
		if err != nil {
			return removed, fmt.Errorf("list feed: %w", err)
		}
		if len(page) <= s.maxMessages {
			break
		}
		progressed := false
		for _, candidate := range page[s.maxMessages:] {
			if _, ok := seen[candidate.ID]; ok {
				continue
			}
			seen[candidate.ID] = struct{}{}
			progressed = true
			deleted, orphaned, err := s.remove(ctx, candidate)
			if err != nil {
				return removed, err
			}
			if orphaned {
				orphans++
			}
			if deleted {
				removed++
			}
		}
		// A short page means everything beyond the window was in it
		if len(page) < s.maxMessages+s.batch || !progressed {
			break
		}
	}
	if removed > 0 {
		s.log.Info("Retention sweep done", "removed", removed, "orphaned_media", orphans)
	}
	return removed, nil
}

// remove reports whether m was deleted by this call and whether its media
// was left behind. A message already gone is not an error.
func (s *Sweeper) remove(ctx context.Context, m domain.Message) (deleted bool, orphaned bool, err error) {
	if m.HasMedia() {
		err := s.medias.Delete(ctx, m.Media.Locator)
		switch {
		case err == nil, stderrors.Is(err, errors.ErrNotFound):
		case ctx.Err() != nil:
			return false, false, ctx.Err()
		default:
			orphaned = true
			s.log.Warn("Unable to delete media, leaving it behind", "id", m.ID, "locator", m.Media.Locator, "error", err)
		}
	}
	err = s.messages.Delete(ctx, m.ID)
	if stderrors.Is(err, errors.ErrNotFound) {
		return false, orphaned, nil
	}
	if err != nil {
		return false, orphaned, fmt.Errorf("delete message %s: %w", m.ID, err)
	}
	s.log.Debug("Message swept", "id", m.ID, "created_at", m.CreatedAt)
	return true, orphaned, nil
}
