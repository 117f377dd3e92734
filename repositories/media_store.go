package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"public-feed/errors"
	"public-feed/proto/feedpb"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	mediaPrefix = "media:"
	// MediaNamespace scopes every locator handed out by the media stores.
	MediaNamespace = "chat-images/"
)

// NewLocator builds "chat-images/{unix_ns}-{uuid}".
func NewLocator(at time.Time) string {
	return fmt.Sprintf("%s%d-%s", MediaNamespace, at.UnixNano(), uuid.NewString())
}

// ValidLocator tells whether locator could have been produced by NewLocator.
func ValidLocator(locator string) bool {
	return strings.HasPrefix(locator, MediaNamespace) && len(locator) > len(MediaNamespace)
}

// MediaStore keeps encoded images in the same BadgerDB as the messages.
type MediaStore struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewMediaStore(db *badger.DB, log *slog.Logger) *MediaStore {
	return &MediaStore{db: db, log: log, now: time.Now}
}

func (s *MediaStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	at := s.now().UTC()
	locator := NewLocator(at)
	stored := &feedpb.StoredMedia{ContentType: contentType, Data: data, StoredAt: at.UnixNano()}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(mediaPrefix+locator), stored.MarshalWire())
	})
	if err != nil {
		return "", classify(err)
	}
	s.log.Debug("Media stored", "locator", locator, "size", len(data))
	return locator, nil
}

func (s *MediaStore) Get(ctx context.Context, locator string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	stored := &feedpb.StoredMedia{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(mediaPrefix + locator))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("media %s: %w", locator, errors.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return stored.UnmarshalWire(value)
		})
	})
	if err != nil {
		return nil, "", classify(err)
	}
	return stored.Data, stored.ContentType, nil
}

// Delete returns ErrNotFound when nothing is stored under locator.
func (s *MediaStore) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := []byte(mediaPrefix + locator)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("media %s: %w", locator, errors.ErrNotFound)
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return classify(err)
	}
	s.log.Debug("Media deleted", "locator", locator)
	return nil
}
