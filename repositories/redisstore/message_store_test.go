package redisstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"public-feed/contract"
	"public-feed/domain"
	"public-feed/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newStore(t *testing.T, opts ...Option) (*miniredis.Miniredis, *MessageStore) {
	t.Helper()
	mr, client := newRedis(t)
	opts = append([]Option{WithWatchRetry(10 * time.Millisecond)}, opts...)
	return mr, NewMessageStore(client, logs.GetLoggerFromLevel(slog.LevelError), opts...)
}

func record(author, body string) domain.MessageRecord {
	return domain.MessageRecord{Token: author + ":" + body, Author: author, Body: body, Approved: true}
}

func bodies(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.Body })
}

func Test_Insert_And_List(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	_, store := newStore(t, WithClock(func() time.Time { return at }))

	// When a message with media is inserted
	rec := record("Bob", "")
	rec.Media = &domain.Media{Locator: "chat-images/1-x", ContentType: "image/jpeg", OriginalSize: 10, Size: 5}
	message, err := store.Insert(ctx, rec)

	// Then it is read back identically
	req.NoError(err)
	req.NotEmpty(message.ID)
	req.Equal(at, message.CreatedAt)
	listed, err := store.ListNewestFirst(ctx, 10)
	req.NoError(err)
	req.Equal([]domain.Message{message}, listed)
}

func Test_ListNewestFirst_Orders_And_Limits(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, store := newStore(t)

	for i := range 5 {
		_, err := store.Insert(ctx, record("Ana", fmt.Sprintf("m%d", i)))
		req.NoError(err)
	}

	listed, err := store.ListNewestFirst(ctx, 2)
	req.NoError(err)
	req.Equal([]string{"m4", "m3"}, bodies(listed))

	all, err := store.ListNewestFirst(ctx, 0)
	req.NoError(err)
	req.Len(all, 5)
}

func Test_CreatedAt_Is_Clamped(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Minute)}
	_, store := newStore(t, WithClock(func() time.Time {
		now := ticks[0]
		ticks = ticks[1:]
		return now
	}))

	first, err := store.Insert(ctx, record("Ana", "1"))
	req.NoError(err)
	second, err := store.Insert(ctx, record("Ana", "2"))
	req.NoError(err)

	req.Equal(first.CreatedAt, second.CreatedAt)
	listed, err := store.ListNewestFirst(ctx, 0)
	req.NoError(err)
	req.Equal([]string{"2", "1"}, bodies(listed))
}

func Test_Insert_Replayed_Token(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, store := newStore(t)

	first, err := store.Insert(ctx, record("Ana", "Hola!"))
	req.NoError(err)
	replay, err := store.Insert(ctx, record("Ana", "Hola!"))
	req.NoError(err)

	req.Equal(first, replay)
	listed, err := store.ListNewestFirst(ctx, 0)
	req.NoError(err)
	req.Len(listed, 1)
}

func Test_Delete(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr, store := newStore(t)

	message, err := store.Insert(ctx, record("Ana", "Hola!"))
	req.NoError(err)

	req.NoError(store.Delete(ctx, message.ID))
	req.ErrorIs(store.Delete(ctx, message.ID), errors.ErrNotFound)
	listed, err := store.ListNewestFirst(ctx, 0)
	req.NoError(err)
	req.Empty(listed)
	req.False(mr.Exists("feed:msg:" + message.ID))
	req.Empty(mr.HKeys("feed:tokens"))
}

func Test_Get(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr, store := newStore(t)
	message, err := store.Insert(ctx, record("Ana", "Hola!"))
	req.NoError(err)

	// When reading it by id
	got, err := store.Get(ctx, message.ID)

	// Then it matches what was inserted
	req.NoError(err)
	req.Equal(message, got)

	// And an unknown id is not found
	_, err = store.Get(ctx, "nope")
	req.ErrorIs(err, errors.ErrNotFound)

	// And a broken connection is reported as unavailable
	mr.Close()
	_, err = store.Get(ctx, message.ID)
	req.ErrorIs(err, errors.ErrStoreUnavailable)
}

func Test_Namespace_Isolates_Feeds(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, client := newRedis(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	blue := NewMessageStore(client, log, WithNamespace("blue"))
	green := NewMessageStore(client, log, WithNamespace("green"))

	_, err := blue.Insert(ctx, record("Ana", "blue"))
	req.NoError(err)

	listed, err := green.ListNewestFirst(ctx, 0)
	req.NoError(err)
	req.Empty(listed)
}

func Test_Watch_Follows_Writes_From_Another_Store(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr, watcher := newStore(t)
	writerClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer writerClient.Close()
	writer := NewMessageStore(writerClient, logs.GetLoggerFromLevel(slog.LevelError))

	cursor, err := watcher.Watch(ctx, 2)
	req.NoError(err)
	defer cursor.Close()
	change := next(t, cursor)
	req.NoError(change.Err)
	req.Empty(change.Messages)

	// When another process writes
	for _, body := range []string{"a", "b", "c"} {
		_, err = writer.Insert(ctx, record("Ana", body))
		req.NoError(err)
	}

	// Then the watcher converges to the newest window
	req.Eventually(func() bool {
		select {
		case change = <-cursor.Changes():
		default:
		}
		return change.Err == nil && len(change.Messages) == 2 && change.Messages[0].Body == "c"
	}, 2*time.Second, 5*time.Millisecond)
}

func Test_Watch_Reports_Disconnect_Then_Recovers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr, store := newStore(t)
	_, err := store.Insert(ctx, record("Ana", "kept"))
	req.NoError(err)

	cursor, err := store.Watch(ctx, 10)
	req.NoError(err)
	defer cursor.Close()
	req.Len(next(t, cursor).Messages, 1)

	// When the server goes away
	mr.Close()

	// Then the cursor carries an availability error
	var change domain.WindowChange
	req.Eventually(func() bool {
		select {
		case change = <-cursor.Changes():
		default:
		}
		return change.Err != nil
	}, 2*time.Second, 5*time.Millisecond)
	req.ErrorIs(change.Err, errors.ErrStoreUnavailable)

	// And once it is back the window is emitted again
	req.NoError(mr.Restart())
	req.Eventually(func() bool {
		select {
		case change = <-cursor.Changes():
		default:
		}
		return change.Err == nil && len(change.Messages) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func Test_Watch_Close_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	_, store := newStore(t)

	cursor, err := store.Watch(context.Background(), 10)
	req.NoError(err)
	req.NoError(cursor.Close())
	req.NoError(cursor.Close())
}

func Test_Classify(t *testing.T) {
	req := require.New(t)

	req.ErrorIs(classify(stderrors.New("NOPERM this user has no permissions")), errors.ErrStoreForbidden)
	req.ErrorIs(classify(stderrors.New("WRONGPASS invalid username-password pair")), errors.ErrStoreForbidden)
	req.ErrorIs(classify(stderrors.New("dial tcp: connection refused")), errors.ErrStoreUnavailable)
	req.ErrorIs(classify(context.DeadlineExceeded), context.DeadlineExceeded)
	req.NotErrorIs(classify(context.DeadlineExceeded), errors.ErrStoreUnavailable)
}

func next(t *testing.T, cursor contract.Cursor) domain.WindowChange {
	t.Helper()
	select {
	case change := <-cursor.Changes():
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("no change received")
		return domain.WindowChange{}
	}
}
