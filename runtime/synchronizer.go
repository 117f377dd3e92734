// Package runtime keeps the live feed window and fans it out to subscribers.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"public-feed/contract"
	"public-feed/domain"
	"public-feed/errors"
	"public-feed/observability"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// FeedSynchronizer watches the newest messages of a store and hands the full
// window, oldest first, to every subscriber. It is a contract.Worker: Run
// holds the store cursor and returns on failure so the supervisor restarts it.
type FeedSynchronizer struct {
	store    contract.MessageStore
	limit    int
	log      *slog.Logger
	metrics  *observability.Metrics
	registry *registry
	now      func() time.Time

	// mu orders snapshot updates with subscriptions, every subscriber sees
	// events in sequence order
	mu       sync.Mutex
	ready    bool
	seq      uint64
	messages []domain.Message
	degraded bool
	lastErr  error
}

func NewFeedSynchronizer(store contract.MessageStore, limit int, log *slog.Logger, metrics *observability.Metrics) *FeedSynchronizer {
	return &FeedSynchronizer{
		store:    store,
		limit:    limit,
		log:      log,
		metrics:  metrics,
		registry: newRegistry(),
		now:      time.Now,
	}
}

func (f *FeedSynchronizer) Run(ctx context.Context) error {
	cursor, err := f.store.Watch(ctx, f.limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		f.degrade(err)
		return fmt.Errorf("watch feed: %w", err)
	}
	defer cursor.Close()
	f.log.Debug("Feed watch started", "limit", f.limit)

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, open := <-cursor.Changes():
			if !open {
				if ctx.Err() != nil {
					return nil
				}
				err := fmt.Errorf("%w: feed watch ended", errors.ErrStoreUnavailable)
				f.degrade(err)
				return err
			}
			if change.Err != nil {
				f.degrade(change.Err)
				continue
			}
			f.apply(change.Messages)
		}
	}
}

// apply takes a newest first window from the store.
func (f *FeedSynchronizer) apply(newestFirst []domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = true
	f.degraded = false
	f.lastErr = nil
	f.messages = lo.Reverse(slices.Clone(newestFirst))
	f.broadcast()
}

// degrade keeps the last window visible and signals the failure once.
func (f *FeedSynchronizer) degrade(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastErr = err
	if f.degraded {
		return
	}
	f.log.Warn("Feed degraded, keeping last window", "error", err)
	f.degraded = true
	f.broadcast()
}

func (f *FeedSynchronizer) broadcast() {
	f.seq++
	e := f.event()
	f.metrics.FeedEvent(e.Degraded)
	for _, s := range f.registry.subscribers() {
		s.offer(copyEvent(e))
	}
}

// event must be called with mu held.
func (f *FeedSynchronizer) event() domain.FeedEvent {
	e := domain.FeedEvent{
		Seq:      f.seq,
		Messages: f.messages,
		Degraded: f.degraded,
		At:       f.now().UTC(),
	}
	if f.degraded {
		e.Err = f.lastErr
	}
	return e
}

func copyEvent(e domain.FeedEvent) domain.FeedEvent {
	e.Messages = slices.Clone(e.Messages)
	return e
}

// Subscribe registers sink. It receives the current window right away, then
// every new window. The returned function ends the subscription: once it has
// returned the sink is never called again. It must not be called from the
// sink itself.
// Before the first window of the watch, the current one is read from the store.
func (f *FeedSynchronizer) Subscribe(ctx context.Context, sink contract.EventSink) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := newSubscriber(uuid.NewString(), sink, f.log)
	subCtx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	initial, err := f.current(ctx)
	if err != nil {
		f.mu.Unlock()
		cancel()
		return nil, err
	}
	f.registry.subscribe(s)
	s.offer(initial)
	f.mu.Unlock()

	go s.loop(subCtx)
	f.metrics.SubscriberAdded()
	f.log.Debug("Feed subscriber added", "subscriber", s.id, "subscribers", f.registry.size())

	var once sync.Once
	return func() {
		once.Do(func() {
			f.registry.unsubscribe(s.id)
			cancel()
			s.stop()
			f.metrics.SubscriberRemoved()
			f.log.Debug("Feed subscriber removed", "subscriber", s.id)
		})
	}, nil
}

// current must be called with mu held. A failed store read is not fatal,
// it produces a degraded event with an empty window.
func (f *FeedSynchronizer) current(ctx context.Context) (domain.FeedEvent, error) {
	if f.ready {
		return copyEvent(f.event()), nil
	}
	newestFirst, err := f.store.ListNewestFirst(ctx, f.limit)
	if ctx.Err() != nil {
		return domain.FeedEvent{}, ctx.Err()
	}
	e := domain.FeedEvent{Seq: f.seq, At: f.now().UTC()}
	if err != nil {
		e.Degraded = true
		e.Err = err
		if f.lastErr != nil {
			e.Err = f.lastErr
		}
		return e, nil
	}
	e.Messages = lo.Reverse(newestFirst)
	return e, nil
}

// Current returns the window as the next subscriber would first receive it.
func (f *FeedSynchronizer) Current(ctx context.Context) (domain.FeedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current(ctx)
}

func (f *FeedSynchronizer) Subscribers() int {
	return f.registry.size()
}

var _ contract.Worker = (*FeedSynchronizer)(nil)
