package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/watchlater-bot/internal/models"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := NewRedisStorage(context.Background(), RedisConfig{URL: "redis://" + mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, mr
}

func TestRedisStorage(t *testing.T) {
	runStorageSuite(t, func(t *testing.T) Storage {
		s, _ := newTestRedis(t)
		return s
	})
}

func TestRedisStorageMarkAsReadUsesServerTime(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t)
	serverTime := time.Date(2023, 11, 5, 8, 0, 0, 0, time.UTC)
	mr.SetTime(serverTime)

	require.NoError(t, s.Set(ctx, "k", models.NewItem("alice", "x")))
	require.NoError(t, s.MarkAsRead(ctx, "k"))

	item, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, item)
	require.NotNil(t, item.ReadAt)
	assert.True(t, item.ReadAt.Equal(serverTime), "read_at = %s, want %s", item.ReadAt, serverTime)
}

func TestRedisStorageKeyPrefix(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t)

	require.NoError(t, s.Set(ctx, "42:7", models.NewItem("alice", "x")))
	assert.True(t, mr.Exists(DefaultRedisKeyPrefix+"42:7"))

	// foreign keys in the same database are not items
	require.NoError(t, mr.Set("session:abc", "not json"))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Key{"42:7"}, SortedKeys(all))
}

func TestRedisStorageCorruptValue(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t)
	require.NoError(t, mr.Set(DefaultRedisKeyPrefix+"bad", "{"))

	_, err := s.Get(ctx, "bad")
	assert.Error(t, err)

	_, err = s.GetAll(ctx)
	assert.Error(t, err)
}

func TestRedisStorageSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t)
	require.NoError(t, s.Set(ctx, "k", models.NewItem("alice", "x")))

	mr.Close()
	require.NoError(t, mr.Restart())

	item, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "x", item.Content)
}

func TestRedisStorageHealthCheckFailsWhenDown(t *testing.T) {
	s, mr := newTestRedis(t)
	mr.Close()

	assert.Error(t, s.HealthCheck(context.Background()))
}

func TestNewRedisStorageBadURL(t *testing.T) {
	_, err := NewRedisStorage(context.Background(), RedisConfig{URL: "not-a-url"}, zap.NewNop())
	assert.Error(t, err)
}

func TestRedisStorageMarkAsReadRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedis(t)
	require.NoError(t, s.Set(ctx, "k", models.NewItem("alice", "first")))

	attempts := 0
	s.beforeCommit = func(ctx context.Context, key models.Key) {
		attempts++
		if attempts == 1 {
			require.NoError(t, s.Set(ctx, key, models.NewItem("alice", "edited")))
		}
	}

	require.NoError(t, s.MarkAsRead(ctx, "k"))
	assert.Equal(t, 2, attempts)

	item, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "edited", item.Content)
	assert.NotNil(t, item.ReadAt)
}

func TestRedisStorageMarkAsReadGivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedis(t)
	require.NoError(t, s.Set(ctx, "k", models.NewItem("alice", "x")))

	attempts := 0
	s.beforeCommit = func(ctx context.Context, key models.Key) {
		attempts++
		require.NoError(t, s.Set(ctx, key, models.NewItem("alice", "x")))
	}

	err := s.MarkAsRead(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many concurrent updates")
	assert.Equal(t, markAsReadRetries, attempts)

	item, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.False(t, item.IsRead())
}
