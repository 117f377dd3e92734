package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"public-feed/contract"
	"public-feed/domain"
	"public-feed/errors"
	"public-feed/proto/feedpb"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	messagePrefix = "msg:"
	idPrefix      = "id:"
	tokenPrefix   = "token:"
	sequenceKey   = "seq:messages"
	sequenceLease = 100
)

// MessageStore keeps the feed in BadgerDB, the local persistent variant.
//
// Keys:
//
//	msg:{created_at_ns padded to 19}:{sequence padded to 20} -> StoredMessage
//	id:{id}       -> message key
//	token:{token} -> id
//
// The padding keeps lexicographic order equal to (createdAt, sequence) order,
// so a reverse prefix scan reads the feed newest first.
type MessageStore struct {
	db   *badger.DB
	log  *slog.Logger
	seq  *badger.Sequence
	now  func() time.Time
	hub  *watchHub
	mu   sync.Mutex
	last time.Time
}

type Option func(*MessageStore)

// WithClock replaces time.Now for createdAt assignment.
func WithClock(now func() time.Time) Option {
	return func(s *MessageStore) { s.now = now }
}

func NewMessageStore(db *badger.DB, log *slog.Logger, opts ...Option) (*MessageStore, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceLease)
	if err != nil {
		return nil, classify(err)
	}
	s := &MessageStore{
		db:  db,
		log: log,
		seq: seq,
		now: time.Now,
		hub: newWatchHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	newest, err := s.ListNewestFirst(context.Background(), 1)
	if err != nil {
		return nil, err
	}
	if len(newest) == 1 {
		s.last = newest[0].CreatedAt
	}
	return s, nil
}

// Close releases the leased sequence range. The DB is owned by the caller.
func (s *MessageStore) Close() error {
	return s.seq.Release()
}

func messageKey(createdAt time.Time, sequence uint64) []byte {
	return fmt.Appendf(nil, "%s%019d:%020d", messagePrefix, createdAt.UnixNano(), sequence)
}

// Insert writes the record unless its token was already persisted, in which
// case the first message is returned untouched.
// Writes are serialized so that createdAt never goes backwards.
func (s *MessageStore) Insert(ctx context.Context, record domain.MessageRecord) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// A replayed token burns a sequence number, gaps are fine
	sequence, err := s.seq.Next()
	if err != nil {
		return domain.Message{}, classify(err)
	}
	var message domain.Message
	inserted := false
	err = s.db.Update(func(txn *badger.Txn) error {
		if record.Token != "" {
			existing, found, err := s.byToken(txn, record.Token)
			if err != nil {
				return err
			}
			if found {
				message = existing
				return nil
			}
		}
		createdAt := s.now().UTC()
		if createdAt.Before(s.last) {
			createdAt = s.last
		}
		message = domain.Message{
			ID:        uuid.NewString(),
			Author:    record.Author,
			Body:      record.Body,
			Media:     record.Media,
			CreatedAt: createdAt,
			Approved:  record.Approved,
		}
		key := messageKey(createdAt, sequence)
		stored := &feedpb.StoredMessage{
			Message:  feedpb.FromDomainMessage(message),
			Token:    record.Token,
			Sequence: sequence,
		}
		if err := txn.Set(key, stored.MarshalWire()); err != nil {
			return err
		}
		if err := txn.Set([]byte(idPrefix+message.ID), key); err != nil {
			return err
		}
		if record.Token != "" {
			if err := txn.Set([]byte(tokenPrefix+record.Token), []byte(message.ID)); err != nil {
				return err
			}
		}
		inserted = true
		return nil
	})
	if err != nil {
		return domain.Message{}, classify(err)
	}
	if !inserted {
		s.log.Debug("Token already persisted", "token", record.Token, "id", message.ID)
		return message, nil
	}
	s.last = message.CreatedAt
	s.log.Debug("Message stored", "id", message.ID, "created_at", message.CreatedAt)
	s.hub.notify()
	return message, nil
}

func (s *MessageStore) byToken(txn *badger.Txn, token string) (domain.Message, bool, error) {
	item, err := txn.Get([]byte(tokenPrefix + token))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, false, nil
	}
	if err != nil {
		return domain.Message{}, false, err
	}
	id, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Message{}, false, err
	}
	stored, _, err := s.byID(txn, string(id))
	if err != nil {
		return domain.Message{}, false, err
	}
	return stored.Message.ToDomain(), true, nil
}

func (s *MessageStore) byID(txn *badger.Txn, id string) (*feedpb.StoredMessage, []byte, error) {
	item, err := txn.Get([]byte(idPrefix + id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	item, err = txn.Get(key)
	if err != nil {
		return nil, nil, err
	}
	stored := &feedpb.StoredMessage{}
	err = item.Value(func(value []byte) error {
		return stored.UnmarshalWire(value)
	})
	if err != nil {
		return nil, nil, err
	}
	return stored, key, nil
}

// ListNewestFirst reads at most limit messages, the newest first.
// A limit <= 0 reads everything.
func (s *MessageStore) ListNewestFirst(ctx context.Context, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Every key sorts before prefix+0xff, the reverse seek lands on the newest one
		for it.Seek(append(prefix, 0xff)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			stored := &feedpb.StoredMessage{}
			err := it.Item().Value(func(value []byte) error {
				return stored.UnmarshalWire(value)
			})
			if err != nil {
				return err
			}
			if stored.Message == nil {
				return fmt.Errorf("record %s has no message", it.Item().Key())
			}
			messages = append(messages, stored.Message.ToDomain())
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(err)
	}
	return messages, nil
}

func (s *MessageStore) Get(ctx context.Context, id string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	var message domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		stored, _, err := s.byID(txn, id)
		if err != nil {
			return err
		}
		if stored.Message == nil {
			return fmt.Errorf("record %s has no message", id)
		}
		message = stored.Message.ToDomain()
		return nil
	})
	if err != nil {
		return domain.Message{}, classify(err)
	}
	return message, nil
}

// Delete removes the message and its index entries, ErrNotFound when unknown.
func (s *MessageStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		stored, key, err := s.byID(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		if err := txn.Delete([]byte(idPrefix + id)); err != nil {
			return err
		}
		if stored.Token != "" {
			return txn.Delete([]byte(tokenPrefix + stored.Token))
		}
		return nil
	})
	if err != nil {
		return classify(err)
	}
	s.log.Debug("Message deleted", "id", id)
	s.hub.notify()
	return nil
}

// Watch emits the current window right away, then again after every insert
// or delete made through this store.
func (s *MessageStore) Watch(ctx context.Context, limit int) (contract.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cursor := NewWindowCursor()
	wake := s.hub.add()
	cursor.Go(func() {
		defer s.hub.remove(wake)
		for {
			messages, err := s.ListNewestFirst(ctx, limit)
			if ctx.Err() != nil {
				return
			}
			cursor.Publish(domain.WindowChange{Messages: messages, Err: err})
			select {
			case <-wake:
			case <-ctx.Done():
				return
			case <-cursor.Done():
				return
			}
		}
	})
	return cursor, nil
}

// classify sorts badger failures into the two store classes.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, errors.ErrNotFound),
		stderrors.Is(err, context.Canceled),
		stderrors.Is(err, context.DeadlineExceeded):
		return err
	case stderrors.Is(err, badger.ErrReadOnlyTxn):
		return fmt.Errorf("%w: %w", errors.ErrStoreForbidden, err)
	default:
		return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
}

// watchHub wakes every watcher on a write. A wake channel holds one pending
// signal, several writes before a re-read collapse into one.
type watchHub struct {
	mu      sync.Mutex
	wakeups map[chan struct{}]struct{}
}

func newWatchHub() *watchHub {
	return &watchHub{wakeups: make(map[chan struct{}]struct{})}
}

func (h *watchHub) add() chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	wake := make(chan struct{}, 1)
	h.wakeups[wake] = struct{}{}
	return wake
}

func (h *watchHub) remove(wake chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.wakeups, wake)
}

func (h *watchHub) notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for wake := range h.wakeups {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}
