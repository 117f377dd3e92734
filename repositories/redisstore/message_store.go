package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"public-feed/contract"
	"public-feed/domain"
	"public-feed/errors"
	"public-feed/proto/feedpb"
	"public-feed/repositories"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// insertScript writes a record unless its token is known.
// Timestamps stay strings on the Lua side, Lua numbers are doubles.
//
// KEYS: tokens, seq, last, index, message
// ARGV: token, id, now_ms, record
// Returns {1, id, created_at_ms, seq} on insert, {0, existing_id} on replay.
var insertScript = redis.NewScript(`
if ARGV[1] ~= '' then
  local existing = redis.call('HGET', KEYS[1], ARGV[1])
  if existing then
    return {0, existing}
  end
end
local seq = redis.call('INCR', KEYS[2])
local now = ARGV[3]
local last = redis.call('GET', KEYS[3])
if last and tonumber(last) > tonumber(now) then
  now = last
end
redis.call('SET', KEYS[3], now)
redis.call('HSET', KEYS[5], 'record', ARGV[4], 'created_at', now, 'seq', seq, 'token', ARGV[1])
redis.call('ZADD', KEYS[4], seq, ARGV[2])
if ARGV[1] ~= '' then
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
return {1, ARGV[2], now, seq}
`)

// deleteScript removes a message with its index and token entries.
//
// KEYS: index, tokens, message
// ARGV: id
var deleteScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[3]) == 0 then
  return 0
end
local token = redis.call('HGET', KEYS[3], 'token')
redis.call('DEL', KEYS[3])
redis.call('ZREM', KEYS[1], ARGV[1])
if token and token ~= '' then
  redis.call('HDEL', KEYS[2], token)
end
return 1
`)

// MessageStore keeps the feed in Redis and watches it through pub/sub,
// so every process sharing the namespace sees the same live window.
type MessageStore struct {
	client redis.UniversalClient
	log    *slog.Logger
	keys   keys
	now    func() time.Time
	// retry is the pause before re-reading the window after a watch failure
	retry time.Duration
}

type Option func(*MessageStore)

func WithNamespace(ns string) Option {
	return func(s *MessageStore) {
		if ns != "" {
			s.keys = keys{ns: ns}
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *MessageStore) { s.now = now }
}

func WithWatchRetry(d time.Duration) Option {
	return func(s *MessageStore) { s.retry = d }
}

func NewMessageStore(client redis.UniversalClient, log *slog.Logger, opts ...Option) *MessageStore {
	s := &MessageStore{
		client: client,
		log:    log,
		keys:   keys{ns: DefaultNamespace},
		now:    time.Now,
		retry:  time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MessageStore) Insert(ctx context.Context, record domain.MessageRecord) (domain.Message, error) {
	id := uuid.NewString()
	draft := feedpb.FromDomainMessage(domain.Message{
		ID:       id,
		Author:   record.Author,
		Body:     record.Body,
		Media:    record.Media,
		Approved: record.Approved,
	})
	// the script owns the timestamp
	draft.CreatedAt = 0
	k := s.keys
	result, err := insertScript.Run(ctx, s.client,
		[]string{k.tokens(), k.seq(), k.last(), k.index(), k.message(id)},
		record.Token, id, strconv.FormatInt(s.now().UnixMilli(), 10), draft.MarshalWire(),
	).Slice()
	if err != nil {
		return domain.Message{}, classify(err)
	}
	if len(result) >= 2 && result[0] == int64(0) {
		existing := fmt.Sprint(result[1])
		s.log.Debug("Token already persisted", "token", record.Token, "id", existing)
		message, found, err := s.get(ctx, existing)
		if err != nil {
			return domain.Message{}, err
		}
		if !found {
			return domain.Message{}, fmt.Errorf("message %s: %w", existing, errors.ErrNotFound)
		}
		return message, nil
	}
	if len(result) != 4 {
		return domain.Message{}, fmt.Errorf("%w: unexpected insert reply %v", errors.ErrStoreUnavailable, result)
	}
	createdAt, err := strconv.ParseInt(fmt.Sprint(result[2]), 10, 64)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: created_at: %w", errors.ErrStoreUnavailable, err)
	}
	message := draft.ToDomain()
	message.CreatedAt = time.UnixMilli(createdAt).UTC()
	s.publish(ctx, id)
	s.log.Debug("Message stored", "id", id, "created_at", message.CreatedAt)
	return message, nil
}

// publish only logs a failure: the message is persisted, watchers catch up
// on their next read.
func (s *MessageStore) publish(ctx context.Context, id string) {
	if err := s.client.Publish(ctx, s.keys.changes(), id).Err(); err != nil {
		s.log.Warn("Unable to publish feed change", "id", id, "error", err)
	}
}

func (s *MessageStore) get(ctx context.Context, id string) (domain.Message, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.keys.message(id)).Result()
	if err != nil {
		return domain.Message{}, false, classify(err)
	}
	if len(fields) == 0 {
		return domain.Message{}, false, nil
	}
	message, err := decode(fields)
	return message, err == nil, err
}

func decode(fields map[string]string) (domain.Message, error) {
	pb := &feedpb.Message{}
	if err := pb.UnmarshalWire([]byte(fields["record"])); err != nil {
		return domain.Message{}, fmt.Errorf("record: %w", err)
	}
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return domain.Message{}, fmt.Errorf("created_at: %w", err)
	}
	message := pb.ToDomain()
	message.CreatedAt = time.UnixMilli(createdAt).UTC()
	return message, nil
}

// ListNewestFirst reads at most limit messages, the newest first.
// A limit <= 0 reads everything. Ids removed between the index read and the
// record read are skipped.
func (s *MessageStore) ListNewestFirst(ctx context.Context, limit int) ([]domain.Message, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, s.keys.index(), 0, stop).Result()
	if err != nil {
		return nil, classify(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	commands := lo.Map(ids, func(id string, _ int) *redis.MapStringStringCmd {
		return pipe.HGetAll(ctx, s.keys.message(id))
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, classify(err)
	}
	messages := make([]domain.Message, 0, len(ids))
	for i, cmd := range commands {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		message, err := decode(fields)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", ids[i], err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (s *MessageStore) Get(ctx context.Context, id string) (domain.Message, error) {
	message, found, err := s.get(ctx, id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, err)
	}
	if !found {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	return message, nil
}

func (s *MessageStore) Delete(ctx context.Context, id string) error {
	k := s.keys
	removed, err := deleteScript.Run(ctx, s.client, []string{k.index(), k.tokens(), k.message(id)}, id).Int()
	if err != nil {
		return classify(err)
	}
	if removed == 0 {
		return fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	s.publish(ctx, id)
	s.log.Debug("Message deleted", "id", id)
	return nil
}

// Watch subscribes to the change channel, then emits the window after every
// notification. A broken subscription is reported as a change carrying the
// error, the watch keeps trying and emits a fresh window once it recovers.
func (s *MessageStore) Watch(ctx context.Context, limit int) (contract.Cursor, error) {
	pubsub := s.client.Subscribe(ctx, s.keys.changes())
	// Wait for the confirmation, writes before it could otherwise be missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, classify(err)
	}
	cursor := repositories.NewWindowCursor()
	go func() {
		select {
		case <-cursor.Done():
		case <-ctx.Done():
		}
		_ = pubsub.Close()
	}()
	cursor.Go(func() {
		for {
			messages, err := s.ListNewestFirst(ctx, limit)
			if s.stopped(ctx, cursor) {
				return
			}
			cursor.Publish(domain.WindowChange{Messages: messages, Err: err})
			if err != nil {
				if !s.pause(ctx, cursor) {
					return
				}
				continue
			}
			if err := s.awaitChange(ctx, pubsub); err != nil {
				if s.stopped(ctx, cursor) {
					return
				}
				s.log.Warn("Feed watch interrupted", "error", err)
				cursor.Publish(domain.WindowChange{Err: classify(err)})
				if !s.pause(ctx, cursor) {
					return
				}
			}
		}
	})
	return cursor, nil
}

// awaitChange blocks until a message lands on the change channel.
func (s *MessageStore) awaitChange(ctx context.Context, pubsub *redis.PubSub) error {
	for {
		received, err := pubsub.Receive(ctx)
		if err != nil {
			return err
		}
		switch received.(type) {
		case *redis.Message:
			return nil
		case *redis.Subscription, *redis.Pong:
			// resubscription after a reconnect, or a health check
		}
	}
}

func (s *MessageStore) stopped(ctx context.Context, cursor *repositories.WindowCursor) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-cursor.Done():
		return true
	default:
		return false
	}
}

func (s *MessageStore) pause(ctx context.Context, cursor *repositories.WindowCursor) bool {
	timer := time.NewTimer(s.retry)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-cursor.Done():
		return false
	}
}

var _ contract.MessageStore = (*MessageStore)(nil)
