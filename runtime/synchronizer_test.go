package runtime

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"public-feed/contract"
	"public-feed/domain"
	"public-feed/errors"
	"public-feed/mocks"
	"public-feed/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.FeedEvent
}

func (r *recorder) Consume(_ context.Context, e domain.FeedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) all() []domain.FeedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.FeedEvent(nil), r.events...)
}

func (r *recorder) last() (domain.FeedEvent, bool) {
	events := r.all()
	if len(events) == 0 {
		return domain.FeedEvent{}, false
	}
	return events[len(events)-1], true
}

func bodies(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.Body })
}

func newBadgerStore(t *testing.T) *repositories.MessageStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store, err := repositories.NewMessageStore(db, logs.GetLoggerFromLevel(slog.LevelError))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insert(t *testing.T, store contract.MessageStore, body string) {
	t.Helper()
	_, err := store.Insert(context.Background(), domain.MessageRecord{Token: body, Author: "Ana", Body: body, Approved: true})
	require.NoError(t, err)
}

func runSynchronizer(t *testing.T, f *FeedSynchronizer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestSubscribe_Delivers_Current_Window_Oldest_First(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	for _, body := range []string{"t1", "t2", "t3"} {
		insert(t, store, body)
	}
	f := NewFeedSynchronizer(store, 10, logs.GetLoggerFromLevel(slog.LevelError), nil)

	// When a subscriber joins before any watch is running
	sink := &recorder{}
	unsubscribe, err := f.Subscribe(context.Background(), sink)
	req.NoError(err)
	defer unsubscribe()

	// Then it still receives the stored window, oldest first
	req.Eventually(func() bool { return len(sink.all()) == 1 }, time.Second, time.Millisecond)
	e, _ := sink.last()
	req.Equal([]string{"t1", "t2", "t3"}, bodies(e.Messages))
	req.False(e.Degraded)
}

func TestSynchronizer_Follows_Inserts_In_Order(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	f := NewFeedSynchronizer(store, 3, logs.GetLoggerFromLevel(slog.LevelError), nil)
	runSynchronizer(t, f)

	sink := &recorder{}
	unsubscribe, err := f.Subscribe(context.Background(), sink)
	req.NoError(err)
	defer unsubscribe()

	// When more messages than the window are persisted
	for _, body := range []string{"m1", "m2", "m3", "m4", "m5"} {
		insert(t, store, body)
	}

	// Then the window holds exactly the newest three, oldest first
	req.Eventually(func() bool {
		e, ok := sink.last()
		return ok && len(e.Messages) == 3 && e.Messages[2].Body == "m5"
	}, 2*time.Second, 5*time.Millisecond)
	e, _ := sink.last()
	req.Equal([]string{"m3", "m4", "m5"}, bodies(e.Messages))

	// And every snapshot is ordered, with increasing sequence numbers
	events := sink.all()
	for i, e := range events {
		for j := 1; j < len(e.Messages); j++ {
			req.False(e.Messages[j].CreatedAt.Before(e.Messages[j-1].CreatedAt))
		}
		req.LessOrEqual(len(e.Messages), 3)
		if i > 0 {
			req.Greater(e.Seq, events[i-1].Seq)
		}
	}
}

func TestSynchronizer_Degraded_Keeps_Last_Window(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	cursor := mocks.NewMockCursor(ctrl)
	changes := make(chan domain.WindowChange, 1)

	store.EXPECT().Watch(gomock.Any(), 10).Return(cursor, nil)
	// read by Subscribe while the watch has not delivered its first window
	store.EXPECT().ListNewestFirst(gomock.Any(), 10).Return(nil, nil).AnyTimes()
	cursor.EXPECT().Changes().Return((<-chan domain.WindowChange)(changes)).AnyTimes()
	cursor.EXPECT().Close().Return(nil)

	f := NewFeedSynchronizer(store, 10, logs.GetLoggerFromLevel(slog.LevelError), nil)
	sink := &recorder{}
	unsubscribe, err := f.Subscribe(context.Background(), sink)
	req.NoError(err)
	defer unsubscribe()
	runSynchronizer(t, f)

	// Given a first window
	changes <- domain.WindowChange{Messages: []domain.Message{{ID: "2", Body: "b"}, {ID: "1", Body: "a"}}}
	req.Eventually(func() bool {
		e, ok := sink.last()
		return ok && len(e.Messages) == 2
	}, time.Second, time.Millisecond)

	// When the store connection breaks
	changes <- domain.WindowChange{Err: errors.ErrStoreUnavailable}

	// Then subscribers are told, and the window stays visible
	req.Eventually(func() bool {
		e, ok := sink.last()
		return ok && e.Degraded
	}, time.Second, time.Millisecond)
	e, _ := sink.last()
	req.ErrorIs(e.Err, errors.ErrStoreUnavailable)
	req.Equal([]string{"a", "b"}, bodies(e.Messages))

	// And a later window clears the degraded state
	changes <- domain.WindowChange{Messages: []domain.Message{{ID: "3", Body: "c"}, {ID: "2", Body: "b"}}}
	req.Eventually(func() bool {
		e, ok := sink.last()
		return ok && !e.Degraded && len(e.Messages) == 2 && e.Messages[1].Body == "c"
	}, time.Second, time.Millisecond)
}

func TestSynchronizer_Run_Fails_When_Watch_Ends(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	cursor := mocks.NewMockCursor(ctrl)
	changes := make(chan domain.WindowChange)
	close(changes)

	store.EXPECT().Watch(gomock.Any(), 5).Return(cursor, nil)
	cursor.EXPECT().Changes().Return((<-chan domain.WindowChange)(changes)).AnyTimes()
	cursor.EXPECT().Close().Return(nil)

	f := NewFeedSynchronizer(store, 5, logs.GetLoggerFromLevel(slog.LevelError), nil)

	err := f.Run(context.Background())
	req.ErrorIs(err, errors.ErrStoreUnavailable)
}

func TestSynchronizer_Run_Fails_When_Watch_Cannot_Start(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().Watch(gomock.Any(), 5).Return(nil, errors.ErrStoreForbidden)
	store.EXPECT().ListNewestFirst(gomock.Any(), 5).Return(nil, errors.ErrStoreForbidden)

	f := NewFeedSynchronizer(store, 5, logs.GetLoggerFromLevel(slog.LevelError), nil)
	req.ErrorIs(f.Run(context.Background()), errors.ErrStoreForbidden)

	// A subscriber joining now gets a degraded, empty window
	e, err := f.Current(context.Background())
	req.NoError(err)
	req.True(e.Degraded)
	req.Empty(e.Messages)
}

func TestUnsubscribe_Stops_Callbacks(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	f := NewFeedSynchronizer(store, 10, logs.GetLoggerFromLevel(slog.LevelError), nil)
	runSynchronizer(t, f)

	sink := &recorder{}
	unsubscribe, err := f.Subscribe(context.Background(), sink)
	req.NoError(err)
	req.Eventually(func() bool { return len(sink.all()) >= 1 }, time.Second, time.Millisecond)
	req.Equal(1, f.Subscribers())

	// When the subscription ends
	unsubscribe()
	unsubscribe()
	seen := len(sink.all())

	// Then later writes never reach the sink
	insert(t, store, "after")
	time.Sleep(50 * time.Millisecond)
	req.Len(sink.all(), seen)
	req.Equal(0, f.Subscribers())
}

type panicking struct{}

func (panicking) Consume(context.Context, domain.FeedEvent) error { panic("boom") }

type failing struct{}

func (failing) Consume(context.Context, domain.FeedEvent) error { return stderrors.New("sink closed") }

func TestSubscribers_Are_Isolated(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	f := NewFeedSynchronizer(store, 10, logs.GetLoggerFromLevel(slog.LevelError), nil)
	runSynchronizer(t, f)

	// Given a panicking and a failing subscriber next to a healthy one
	for _, sink := range []contract.EventSink{panicking{}, failing{}} {
		unsubscribe, err := f.Subscribe(context.Background(), sink)
		req.NoError(err)
		defer unsubscribe()
	}
	healthy := &recorder{}
	unsubscribe, err := f.Subscribe(context.Background(), healthy)
	req.NoError(err)
	defer unsubscribe()

	insert(t, store, "still delivered")

	// Then the healthy one keeps receiving windows
	req.Eventually(func() bool {
		e, ok := healthy.last()
		return ok && len(e.Messages) == 1
	}, time.Second, time.Millisecond)
}

func TestSlow_Subscriber_Only_Skips_Windows(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	f := NewFeedSynchronizer(store, 100, logs.GetLoggerFromLevel(slog.LevelError), nil)
	runSynchronizer(t, f)

	// Given a sink taking its time on every window
	sink := &recorder{}
	slow := contract.SinkFunc(func(ctx context.Context, e domain.FeedEvent) error {
		time.Sleep(5 * time.Millisecond)
		return sink.Consume(ctx, e)
	})
	unsubscribe, err := f.Subscribe(context.Background(), slow)
	req.NoError(err)
	defer unsubscribe()

	for i := range 30 {
		insert(t, store, string(rune('a'+i)))
	}

	// Then it converges to the full window without ever going backwards
	req.Eventually(func() bool {
		e, ok := sink.last()
		return ok && len(e.Messages) == 30
	}, 3*time.Second, 5*time.Millisecond)
	events := sink.all()
	for i := 1; i < len(events); i++ {
		req.Greater(events[i].Seq, events[i-1].Seq)
		req.GreaterOrEqual(len(events[i].Messages), len(events[i-1].Messages))
	}
}

func TestSubscribe_Cancelled_Context(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFeedSynchronizer(newBadgerStore(t), 10, logs.GetLoggerFromLevel(slog.LevelError), nil)

	_, err := f.Subscribe(ctx, &recorder{})
	req.ErrorIs(err, context.Canceled)
}
