//go:generate go run go.uber.org/mock/mockgen -source=feed_service.go -destination=../mocks/mock_feed_service.go -package=mocks
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"public-feed/contract"
	"public-feed/domain"
	"public-feed/errors"
	"public-feed/repositories"
)

type IFeedService interface {
	Submit(ctx context.Context, submission domain.Submission) (domain.Message, error)
	GetFeed(ctx context.Context) (domain.FeedEvent, error)
	Subscribe(ctx context.Context, sink contract.EventSink) (func(), error)
	GetMedia(ctx context.Context, locator string) ([]byte, string, error)
	Sweep(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}

type Submitter interface {
	Submit(ctx context.Context, submission domain.Submission) (domain.Message, error)
}

type Feed interface {
	Current(ctx context.Context) (domain.FeedEvent, error)
	Subscribe(ctx context.Context, sink contract.EventSink) (func(), error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type FeedService struct {
	pipeline Submitter
	feed     Feed
	sweeper  Sweeper
	messages contract.MessageStore
	medias   contract.MediaStore
	log      *slog.Logger
}

func NewFeedService(pipeline Submitter, feed Feed, sweeper Sweeper,
	messages contract.MessageStore, medias contract.MediaStore, log *slog.Logger) *FeedService {
	return &FeedService{
		pipeline: pipeline,
		feed:     feed,
		sweeper:  sweeper,
		messages: messages,
		medias:   medias,
		log:      log,
	}
}

func (s *FeedService) Submit(ctx context.Context, submission domain.Submission) (domain.Message, error) {
	return s.pipeline.Submit(ctx, submission)
}

// GetFeed returns the current window, oldest first. A degraded window with
// nothing to show is reported as an error.
func (s *FeedService) GetFeed(ctx context.Context) (domain.FeedEvent, error) {
	e, err := s.feed.Current(ctx)
	if err != nil {
		return domain.FeedEvent{}, err
	}
	if e.Degraded && len(e.Messages) == 0 && e.Err != nil {
		return domain.FeedEvent{}, fmt.Errorf("%w: %w", errors.ErrPersistenceUnavailable, e.Err)
	}
	return e, nil
}

func (s *FeedService) Subscribe(ctx context.Context, sink contract.EventSink) (func(), error) {
	return s.feed.Subscribe(ctx, sink)
}

func (s *FeedService) GetMedia(ctx context.Context, locator string) ([]byte, string, error) {
	if !repositories.ValidLocator(locator) {
		return nil, "", fmt.Errorf("media %q: %w", locator, errors.ErrNotFound)
	}
	return s.medias.Get(ctx, locator)
}

func (s *FeedService) Sweep(ctx context.Context) (int, error) {
	return s.sweeper.Sweep(ctx)
}

// Delete removes one message with its media, media first like a sweep.
func (s *FeedService) Delete(ctx context.Context, id string) error {
	message, err := s.messages.Get(ctx, id)
	if err != nil {
		return err
	}
	if message.HasMedia() {
		err := s.medias.Delete(ctx, message.Media.Locator)
		if err != nil && !stderrors.Is(err, errors.ErrNotFound) {
			s.log.Warn("Unable to delete media, leaving it behind", "id", id, "locator", message.Media.Locator, "error", err)
		}
	}
	if err := s.messages.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("Message deleted", "id", id)
	return nil
}

var _ IFeedService = (*FeedService)(nil)
