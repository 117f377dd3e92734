package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"public-feed/contract"
	"public-feed/domain"
)

// subscriber delivers events to one sink from its own goroutine.
// Its mailbox holds a single pending event: a newer one replaces it, so a
// slow sink skips intermediate windows but never goes back in time.
type subscriber struct {
	id   string
	sink contract.EventSink
	log  *slog.Logger

	mu      sync.Mutex
	pending *domain.FeedEvent

	wake     chan struct{}
	done     chan struct{}
	finished chan struct{}
}

func newSubscriber(id string, sink contract.EventSink, log *slog.Logger) *subscriber {
	return &subscriber{
		id:       id,
		sink:     sink,
		log:      log,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (s *subscriber) offer(e domain.FeedEvent) {
	s.mu.Lock()
	s.pending = &e
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) take() (domain.FeedEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return domain.FeedEvent{}, false
	}
	e := *s.pending
	s.pending = nil
	return e, true
}

func (s *subscriber) loop(ctx context.Context) {
	defer close(s.finished)
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.wake:
		}
		select {
		case <-s.done:
			return
		default:
		}
		if e, ok := s.take(); ok {
			s.deliver(ctx, e)
		}
	}
}

// deliver isolates the other subscribers from this sink's failures.
func (s *subscriber) deliver(ctx context.Context, e domain.FeedEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Feed subscriber panicked", "subscriber", s.id, "panic", fmt.Sprint(r))
		}
	}()
	if err := s.sink.Consume(ctx, e); err != nil {
		s.log.Warn("Feed subscriber failed", "subscriber", s.id, "seq", e.Seq, "error", err)
	}
}

func (s *subscriber) stop() {
	close(s.done)
	<-s.finished
}
