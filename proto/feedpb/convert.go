package feedpb

import (
	"errors"
	"time"

	"public-feed/domain"

	"github.com/samber/lo"
)

func FromDomainMessage(m domain.Message) *Message {
	out := &Message{
		Id:        m.ID,
		Author:    m.Author,
		Body:      m.Body,
		CreatedAt: m.CreatedAt.UnixNano(),
		Approved:  m.Approved,
	}
	if m.Media != nil {
		out.Media = &Media{
			Locator:      m.Media.Locator,
			ContentType:  m.Media.ContentType,
			OriginalSize: m.Media.OriginalSize,
			Size:         m.Media.Size,
		}
	}
	return out
}

func (m *Message) ToDomain() domain.Message {
	out := domain.Message{
		ID:        m.Id,
		Author:    m.Author,
		Body:      m.Body,
		CreatedAt: time.Unix(0, m.CreatedAt).UTC(),
		Approved:  m.Approved,
	}
	if m.Media != nil {
		out.Media = &domain.Media{
			Locator:      m.Media.Locator,
			ContentType:  m.Media.ContentType,
			OriginalSize: m.Media.OriginalSize,
			Size:         m.Media.Size,
		}
	}
	return out
}

func FromDomainMessages(messages []domain.Message) []*Message {
	return lo.Map(messages, func(m domain.Message, _ int) *Message { return FromDomainMessage(m) })
}

func ToDomainMessages(messages []*Message) []domain.Message {
	return lo.Map(messages, func(m *Message, _ int) domain.Message { return m.ToDomain() })
}

// FromDomainEvent drops the error value, only its text travels.
func FromDomainEvent(e domain.FeedEvent) *FeedEvent {
	out := &FeedEvent{
		Seq:      e.Seq,
		Messages: FromDomainMessages(e.Messages),
		Degraded: e.Degraded,
		At:       e.At.UnixNano(),
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return out
}

// ToDomain restores the error text as a plain error.
func (e *FeedEvent) ToDomain() domain.FeedEvent {
	out := domain.FeedEvent{
		Seq:      e.Seq,
		Messages: ToDomainMessages(e.Messages),
		Degraded: e.Degraded,
		At:       time.Unix(0, e.At).UTC(),
	}
	if e.Error != "" {
		out.Err = errors.New(e.Error)
	}
	return out
}
