//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"public-feed/domain"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// MessageStore is the durable home of feed messages.
// Implementations assign ID and CreatedAt at write time and never reorder
// persisted records. Insert is conditional on the record token: replaying
// a token returns the message persisted the first time.
type MessageStore interface {
	Insert(ctx context.Context, record domain.MessageRecord) (domain.Message, error)
	ListNewestFirst(ctx context.Context, limit int) ([]domain.Message, error)
	// Get returns the message with id, ErrNotFound when unknown.
	Get(ctx context.Context, id string) (domain.Message, error)
	Delete(ctx context.Context, id string) error
	Watch(ctx context.Context, limit int) (Cursor, error)
}

// Cursor is a live view on the newest messages of a store.
// Changes are coalesced: a slow reader only sees the latest window.
type Cursor interface {
	Changes() <-chan domain.WindowChange
	Close() error
}

// MediaStore keeps encoded images under opaque locators.
type MediaStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, locator string) ([]byte, string, error)
	Delete(ctx context.Context, locator string) error
}

// EventSink receives feed events from the synchronizer.
type EventSink interface {
	Consume(ctx context.Context, e domain.FeedEvent) error
}

// SinkFunc adapts a plain callback to an EventSink.
type SinkFunc func(ctx context.Context, e domain.FeedEvent) error

func (f SinkFunc) Consume(ctx context.Context, e domain.FeedEvent) error { return f(ctx, e) }
