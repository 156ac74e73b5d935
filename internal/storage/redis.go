package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xaenox/watchlater-bot/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultRedisKeyPrefix = "watchlater:item:"

	redisDialTimeout  = 1500 * time.Millisecond
	redisScanCount    = 100
	markAsReadRetries = 5
)

type RedisConfig struct {
	URL       string
	KeyPrefix string
}

// RedisStorage stores JSON encoded items under prefixed keys.
// A dropped connection is retried once by the client, a second failure is returned.
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	// beforeCommit runs inside the WATCH transaction right before EXEC. Nil outside tests.
	beforeCommit func(ctx context.Context, key models.Key)
}

var _ Storage = (*RedisStorage)(nil)

func NewRedisStorage(ctx context.Context, config RedisConfig, logger *zap.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis url: %w", err)
	}
	opt.MaxRetries = 1
	opt.DialTimeout = redisDialTimeout

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return &RedisStorage{
		client: client,
		prefix: prefix,
		logger: logger,
	}, nil
}

func (s *RedisStorage) itemKey(key models.Key) string {
	return s.prefix + string(key)
}

func (s *RedisStorage) Set(ctx context.Context, key models.Key, item models.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("error encoding item %s: %w", key, err)
	}

	if err := s.client.Set(ctx, s.itemKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("error setting item %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Get(ctx context.Context, key models.Key) (*models.Item, error) {
	item, err := s.load(ctx, s.itemKey(key))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting item %s: %w", key, err)
	}
	return item, nil
}

func (s *RedisStorage) load(ctx context.Context, redisKey string) (*models.Item, error) {
	data, err := s.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		return nil, err
	}

	var item models.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("error decoding item: %w", err)
	}
	return &item, nil
}

// GetAll walks the whole keyspace under the prefix
func (s *RedisStorage) GetAll(ctx context.Context) (map[models.Key]models.Item, error) {
	items := make(map[models.Key]models.Item)

	iter := s.client.Scan(ctx, 0, s.prefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()

		item, err := s.load(ctx, redisKey)
		if errors.Is(err, redis.Nil) {
			// deleted between SCAN and GET
			s.logger.Debug("Scanned key disappeared", zap.String("key", redisKey))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error getting item %s: %w", redisKey, err)
		}

		if item.IsRead() {
			continue
		}
		items[models.Key(strings.TrimPrefix(redisKey, s.prefix))] = *item
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning items: %w", err)
	}

	return items, nil
}

// TODO: prefix keys with the author so this does not need a full scan
func (s *RedisStorage) GetUserItems(ctx context.Context, user string) (map[models.Key]models.Item, error) {
	items, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByAuthor(items, user), nil
}

func (s *RedisStorage) GetRandom(ctx context.Context) (*Entry, error) {
	items, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return PickRandom(items), nil
}

// Now returns the redis server time
func (s *RedisStorage) Now(ctx context.Context) (time.Time, error) {
	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("error getting time from redis: %w", err)
	}
	return now, nil
}

// MarkAsRead is an optimistic WATCH/MULTI transaction, retried when the key changes underneath
func (s *RedisStorage) MarkAsRead(ctx context.Context, key models.Key) error {
	now, err := s.Now(ctx)
	if err != nil {
		return err
	}

	redisKey := s.itemKey(key)
	mark := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var item models.Item
		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("error decoding item: %w", err)
		}
		item.MarkRead(now)

		updated, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("error encoding item: %w", err)
		}

		if s.beforeCommit != nil {
			s.beforeCommit(ctx, key)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, updated, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < markAsReadRetries; attempt++ {
		err := s.client.Watch(ctx, mark, redisKey)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrNotFound):
			return ErrNotFound
		case errors.Is(err, redis.TxFailedErr):
			s.logger.Debug("Concurrent update while marking item as read",
				zap.String("key", key.String()),
				zap.Int("attempt", attempt))
			continue
		default:
			return fmt.Errorf("error marking item %s as read: %w", key, err)
		}
	}

	return fmt.Errorf("error marking item %s as read: too many concurrent updates", key)
}

func (s *RedisStorage) Delete(ctx context.Context, key models.Key) error {
	if err := s.client.Del(ctx, s.itemKey(key)).Err(); err != nil {
		return fmt.Errorf("error deleting item %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("error pinging redis: %w", err)
	}
	return nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
