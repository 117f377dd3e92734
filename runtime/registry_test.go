package runtime

import (
	"context"
	"log/slog"
	"testing"

	"public-feed/contract"
	"public-feed/domain"

	"github.com/stretchr/testify/require"
)

var noopSink = contract.SinkFunc(func(context.Context, domain.FeedEvent) error { return nil })

func TestRegistry_Subscribe_Unsubscribe(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()

	// Given two subscribers
	registry.subscribe(newSubscriber("a", noopSink, slog.Default()))
	registry.subscribe(newSubscriber("b", noopSink, slog.Default()))
	req.Equal(2, registry.size())

	// When one leaves twice
	req.True(registry.unsubscribe("a"))
	req.False(registry.unsubscribe("a"))

	// Then only the other one remains
	req.Equal(1, registry.size())
	req.Equal("b", registry.subscribers()[0].id)
}

func TestSubscriber_Mailbox_Keeps_Latest(t *testing.T) {
	req := require.New(t)
	s := newSubscriber("a", noopSink, slog.Default())

	// Given three offers before the loop runs
	s.offer(domain.FeedEvent{Seq: 1})
	s.offer(domain.FeedEvent{Seq: 2})
	s.offer(domain.FeedEvent{Seq: 3})

	// Then only the latest is taken, once
	e, ok := s.take()
	req.True(ok)
	req.Equal(uint64(3), e.Seq)
	_, ok = s.take()
	req.False(ok)
}

func TestSubscriber_Panic_Is_Contained(t *testing.T) {
	req := require.New(t)
	delivered := make(chan uint64, 2)
	sink := contract.SinkFunc(func(_ context.Context, e domain.FeedEvent) error {
		delivered <- e.Seq
		if e.Seq == 1 {
			panic("boom")
		}
		return nil
	})
	s := newSubscriber("a", sink, slog.Default())
	go s.loop(context.Background())

	// When the first delivery panics
	s.offer(domain.FeedEvent{Seq: 1})
	req.Equal(uint64(1), <-delivered)
	s.offer(domain.FeedEvent{Seq: 2})

	// Then the loop keeps delivering
	req.Equal(uint64(2), <-delivered)
	s.stop()
}
