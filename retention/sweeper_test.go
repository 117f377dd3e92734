package retention_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"public-feed/contract"
	"public-feed/domain"
	"public-feed/errors"
	"public-feed/mocks"
	"public-feed/repositories"
	"public-feed/retention"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type stores struct {
	messages *repositories.MessageStore
	medias   *repositories.MediaStore
}

func newStores(t *testing.T) stores {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	log := logs.GetLoggerFromLevel(slog.LevelError)
	messages, err := repositories.NewMessageStore(db, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })
	return stores{messages: messages, medias: repositories.NewMediaStore(db, log)}
}

func submit(t *testing.T, s stores, i int, withMedia bool) domain.Message {
	t.Helper()
	ctx := context.Background()
	record := domain.MessageRecord{Token: fmt.Sprint(i), Author: "Ana", Body: fmt.Sprintf("m%02d", i), Approved: true}
	if withMedia {
		locator, err := s.medias.Put(ctx, []byte{byte(i)}, "image/jpeg")
		require.NoError(t, err)
		record.Media = &domain.Media{Locator: locator, ContentType: "image/jpeg", Size: 1}
	}
	message, err := s.messages.Insert(ctx, record)
	require.NoError(t, err)
	return message
}

func TestSweep_Keeps_Window_After_Each_Run(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newStores(t)
	sweeper, err := retention.NewSweeper(s.messages, s.medias, 50, logs.GetLoggerFromLevel(slog.LevelError), nil)
	req.NoError(err)

	// Given 60 successful submissions, swept as they come
	var all []domain.Message
	for i := range 60 {
		all = append(all, submit(t, s, i, i%3 == 0))
		_, err := sweeper.Sweep(ctx)
		req.NoError(err)
		feed, err := s.messages.ListNewestFirst(ctx, 0)
		req.NoError(err)
		req.LessOrEqual(len(feed), 50)
	}

	// Then the 10 oldest are gone, with their images
	feed, err := s.messages.ListNewestFirst(ctx, 0)
	req.NoError(err)
	req.Len(feed, 50)
	req.Equal("m10", feed[len(feed)-1].Body)
	for _, m := range all[:10] {
		if m.HasMedia() {
			_, _, err := s.medias.Get(ctx, m.Media.Locator)
			req.ErrorIs(err, errors.ErrNotFound)
		}
	}
}

func TestSweep_Removes_Exactly_The_Overflow(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newStores(t)
	sweeper, err := retention.NewSweeper(s.messages, s.medias, 20, logs.GetLoggerFromLevel(slog.LevelError), nil)
	req.NoError(err)

	// Given N+k messages with k larger than one listing page
	for i := range 20 + 130 {
		submit(t, s, i, false)
	}

	// When swept
	removed, err := sweeper.Sweep(ctx)

	// Then exactly k are removed, a second sweep has nothing to do
	req.NoError(err)
	req.Equal(130, removed)
	removed, err = sweeper.Sweep(ctx)
	req.NoError(err)
	req.Zero(removed)

	feed, err := s.messages.ListNewestFirst(ctx, 0)
	req.NoError(err)
	req.Len(feed, 20)
}

func TestSweep_Nothing_To_Do_Writes_Nothing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageStore(ctrl)
	medias := mocks.NewMockMediaStore(ctrl)

	// Only a read is expected
	messages.EXPECT().ListNewestFirst(gomock.Any(), 5+retention.DefaultBatchSize).
		Return([]domain.Message{{ID: "1"}, {ID: "2"}}, nil)

	sweeper, err := retention.NewSweeper(messages, medias, 5, logs.GetLoggerFromLevel(slog.LevelError), nil)
	req.NoError(err)
	removed, err := sweeper.Sweep(context.Background())
	req.NoError(err)
	req.Zero(removed)
}

func TestSweep_Media_Failure_Still_Removes_Message(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageStore(ctrl)
	medias := mocks.NewMockMediaStore(ctrl)

	old := domain.Message{ID: "old", Media: &domain.Media{Locator: "chat-images/1-a"}}
	messages.EXPECT().ListNewestFirst(gomock.Any(), gomock.Any()).
		Return([]domain.Message{{ID: "new"}, old}, nil)

	// Media deletion comes first and fails, the record is deleted anyway
	gomock.InOrder(
		medias.EXPECT().Delete(gomock.Any(), "chat-images/1-a").Return(errors.ErrStoreUnavailable),
		messages.EXPECT().Delete(gomock.Any(), "old").Return(nil),
	)

	sweeper, err := retention.NewSweeper(messages, medias, 1, logs.GetLoggerFromLevel(slog.LevelError), nil)
	req.NoError(err)
	removed, err := sweeper.Sweep(context.Background())
	req.NoError(err)
	req.Equal(1, removed)
}

func TestSweep_Record_Failure_Is_Escalated(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageStore(ctrl)
	medias := mocks.NewMockMediaStore(ctrl)

	messages.EXPECT().ListNewestFirst(gomock.Any(), gomock.Any()).
		Return([]domain.Message{{ID: "new"}, {ID: "old"}}, nil)
	messages.EXPECT().Delete(gomock.Any(), "old").Return(errors.ErrStoreUnavailable)

	sweeper, err := retention.NewSweeper(messages, medias, 1, logs.GetLoggerFromLevel(slog.LevelError), nil)
	req.NoError(err)
	removed, err := sweeper.Sweep(context.Background())
	req.ErrorIs(err, errors.ErrStoreUnavailable)
	req.Zero(removed)
}

func TestSweep_Already_Deleted_Is_Not_Counted(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageStore(ctrl)
	medias := mocks.NewMockMediaStore(ctrl)

	messages.EXPECT().ListNewestFirst(gomock.Any(), gomock.Any()).
		Return([]domain.Message{{ID: "new"}, {ID: "gone"}}, nil)
	messages.EXPECT().Delete(gomock.Any(), "gone").Return(fmt.Errorf("message gone: %w", errors.ErrNotFound))

	sweeper, err := retention.NewSweeper(messages, medias, 1, logs.GetLoggerFromLevel(slog.LevelError), nil)
	req.NoError(err)
	removed, err := sweeper.Sweep(context.Background())
	req.NoError(err)
	req.Zero(removed)
}

// fullPage is what a window of one lists with every overflow slot taken.
func fullPage(prefix string) []domain.Message {
	page := []domain.Message{{ID: "new"}}
	for i := range retention.DefaultBatchSize {
		page = append(page, domain.Message{ID: fmt.Sprintf("%s-%d", prefix, i)})
	}
	return page
}

func TestSweep_Continues_After_A_Page_Deleted_Elsewhere(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageStore(ctrl)
	medias := mocks.NewMockMediaStore(ctrl)

	// Given a full page whose overflow was deleted by someone else meanwhile
	gone := fullPage("gone")
	gomock.InOrder(
		messages.EXPECT().ListNewestFirst(gomock.Any(), 1+retention.DefaultBatchSize).Return(gone, nil),
		messages.EXPECT().ListNewestFirst(gomock.Any(), 1+retention.DefaultBatchSize).
			Return([]domain.Message{{ID: "new"}, {ID: "old"}}, nil),
	)
	for _, m := range gone[1:] {
		messages.EXPECT().Delete(gomock.Any(), m.ID).Return(errors.ErrNotFound)
	}
	messages.EXPECT().Delete(gomock.Any(), "old").Return(nil)

	sweeper, err := retention.NewSweeper(messages, medias, 1, logs.GetLoggerFromLevel(slog.LevelError), nil)
	req.NoError(err)

	// When sweeping
	removed, err := sweeper.Sweep(context.Background())

	// Then the overflow listed on the next page is still removed
	req.NoError(err)
	req.Equal(1, removed)
}

func TestSweep_Stops_When_The_Store_Relists_The_Same_Page(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageStore(ctrl)
	medias := mocks.NewMockMediaStore(ctrl)

	// Given a store that keeps listing ids it reports as unknown
	stale := fullPage("stale")
	messages.EXPECT().ListNewestFirst(gomock.Any(), gomock.Any()).Return(stale, nil).Times(2)
	for _, m := range stale[1:] {
		messages.EXPECT().Delete(gomock.Any(), m.ID).Return(errors.ErrNotFound).Times(1)
	}

	sweeper, err := retention.NewSweeper(messages, medias, 1, logs.GetLoggerFromLevel(slog.LevelError), nil)
	req.NoError(err)

	// When sweeping, each id is tried once and the sweep ends
	removed, err := sweeper.Sweep(context.Background())
	req.NoError(err)
	req.Zero(removed)
}

func TestNewSweeper_Rejects_Empty_Window(t *testing.T) {
	_, err := retention.NewSweeper(nil, nil, 0, logs.GetLoggerFromLevel(slog.LevelError), nil)
	require.Error(t, err)
}

var _ contract.MessageStore = (*repositories.MessageStore)(nil)
