package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"public-feed/contract"
	"public-feed/errors"
	"public-feed/repositories"

	"github.com/redis/go-redis/v9"
)

type MediaStore struct {
	client redis.UniversalClient
	log    *slog.Logger
	keys   keys
	now    func() time.Time
}

func NewMediaStore(client redis.UniversalClient, log *slog.Logger, namespace string) *MediaStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &MediaStore{client: client, log: log, keys: keys{ns: namespace}, now: time.Now}
}

func (s *MediaStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	at := s.now().UTC()
	locator := repositories.NewLocator(at)
	err := s.client.HSet(ctx, s.keys.media(locator),
		"content_type", contentType,
		"data", data,
		"stored_at", strconv.FormatInt(at.UnixNano(), 10),
	).Err()
	if err != nil {
		return "", classify(err)
	}
	s.log.Debug("Media stored", "locator", locator, "size", len(data))
	return locator, nil
}

func (s *MediaStore) Get(ctx context.Context, locator string) ([]byte, string, error) {
	values, err := s.client.HMGet(ctx, s.keys.media(locator), "data", "content_type").Result()
	if err != nil {
		return nil, "", classify(err)
	}
	data, ok := values[0].(string)
	if !ok {
		return nil, "", fmt.Errorf("media %s: %w", locator, errors.ErrNotFound)
	}
	contentType, _ := values[1].(string)
	return []byte(data), contentType, nil
}

func (s *MediaStore) Delete(ctx context.Context, locator string) error {
	removed, err := s.client.Del(ctx, s.keys.media(locator)).Result()
	if err != nil {
		return classify(err)
	}
	if removed == 0 {
		return fmt.Errorf("media %s: %w", locator, errors.ErrNotFound)
	}
	s.log.Debug("Media deleted", "locator", locator)
	return nil
}

var _ contract.MediaStore = (*MediaStore)(nil)
