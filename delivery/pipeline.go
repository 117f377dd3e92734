// Package delivery turns a submission into a persisted message:
// validate, moderate, compress and upload the image, then persist with retries.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"public-feed/contract"
	"public-feed/domain"
	"public-feed/errors"
	"public-feed/media"
	"public-feed/observability"
	"public-feed/validation"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

type Validator interface {
	Validate(author, body string, hasMedia bool) (validation.Result, error)
}

type Moderator interface {
	Moderate(author, body string) error
}

type Compressor interface {
	Compress(ctx context.Context, raw domain.RawImage) (media.Encoded, error)
}

type Config struct {
	Retry RetryPolicy
	// CompressionSlots bounds concurrent decodes, each one holds a full bitmap.
	CompressionSlots int64
}

// Pipeline is safe for concurrent submissions.
type Pipeline struct {
	validator  Validator
	moderator  Moderator
	compressor Compressor
	messages   contract.MessageStore
	medias     contract.MediaStore
	log        *slog.Logger
	metrics    *observability.Metrics
	retry      RetryPolicy
	slots      *semaphore.Weighted
	sleep      Sleeper
}

type Option func(*Pipeline)

// WithSleeper replaces the timer used between persistence attempts.
func WithSleeper(sleeper Sleeper) Option {
	return func(p *Pipeline) { p.sleep = sleeper }
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = metrics }
}

func NewPipeline(
	validator Validator,
	moderator Moderator,
	compressor Compressor,
	messages contract.MessageStore,
	medias contract.MediaStore,
	config Config,
	log *slog.Logger,
	opts ...Option,
) (*Pipeline, error) {
	if err := config.Retry.Validate(); err != nil {
		return nil, err
	}
	if config.CompressionSlots < 1 {
		return nil, fmt.Errorf("compression slots must be at least 1, got %d", config.CompressionSlots)
	}
	p := &Pipeline{
		validator:  validator,
		moderator:  moderator,
		compressor: compressor,
		messages:   messages,
		medias:     medias,
		log:        log,
		retry:      config.Retry,
		slots:      semaphore.NewWeighted(config.CompressionSlots),
		sleep:      sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Submit runs every stage in order and stops at the first failure.
// An uploaded image whose message could not be persisted is left behind,
// the message itself never references missing media.
func (p *Pipeline) Submit(ctx context.Context, submission domain.Submission) (domain.Message, error) {
	message, err := p.submit(ctx, submission)
	p.metrics.Submission(err)
	return message, err
}

func (p *Pipeline) submit(ctx context.Context, submission domain.Submission) (domain.Message, error) {
	result, err := p.validator.Validate(submission.Author, submission.Body, submission.HasImage())
	if err != nil {
		return domain.Message{}, err
	}
	if err = p.moderator.Moderate(result.Author, result.Body); err != nil {
		return domain.Message{}, err
	}

	token := submission.Token
	if token == "" {
		token = uuid.NewString()
	}
	record := domain.MessageRecord{
		Token:    token,
		Author:   result.Author,
		Body:     result.Body,
		Approved: true,
	}

	if submission.HasImage() {
		encoded, err := p.compress(ctx, *submission.Image)
		if err != nil {
			return domain.Message{}, err
		}
		locator, err := p.medias.Put(ctx, encoded.Data, encoded.ContentType)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Message{}, ctx.Err()
			}
			p.log.Warn("Media upload failed", "error", err)
			return domain.Message{}, fmt.Errorf("%w: %w", errors.ErrMediaUploadFailed, err)
		}
		record.Media = &domain.Media{
			Locator:      locator,
			ContentType:  encoded.ContentType,
			OriginalSize: encoded.OriginalSize,
			Size:         int64(len(encoded.Data)),
		}
	}

	message, err := retry(ctx, p.retry, p.sleep,
		func(attempt int, err error) {
			p.log.Warn("Persistence attempt failed", "attempt", attempt, "max_attempts", p.retry.MaxAttempts, "error", err)
		},
		func() (domain.Message, error) {
			p.metrics.PersistAttempt()
			return p.messages.Insert(ctx, record)
		})
	if err != nil {
		if record.Media != nil {
			p.log.Debug("Media left without message", "locator", record.Media.Locator)
		}
		return domain.Message{}, err
	}
	p.log.Debug("Message delivered", "id", message.ID, "has_media", message.HasMedia())
	return message, nil
}

func (p *Pipeline) compress(ctx context.Context, raw domain.RawImage) (media.Encoded, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return media.Encoded{}, err
	}
	defer p.slots.Release(1)
	start := time.Now()
	encoded, err := p.compressor.Compress(ctx, raw)
	p.metrics.Compressed(time.Since(start))
	return encoded, err
}
