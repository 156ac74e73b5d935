package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/watchlater-bot/internal/models"
)

// runStorageSuite checks the behaviour every backend must share
func runStorageSuite(t *testing.T, newStorage func(t *testing.T) Storage) {
	t.Run("set then get returns the same item", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		item := models.NewItem("alice", "https://example.com")

		require.NoError(t, s.Set(ctx, "1:10", item))

		got, err := s.Get(ctx, "1:10")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, item, *got)
	})

	t.Run("get of a missing key returns nil", func(t *testing.T) {
		got, err := newStorage(t).Get(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("read items are hidden from listings", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		require.NoError(t, s.Set(ctx, "1:10", models.NewItem("alice", "first")))
		require.NoError(t, s.Set(ctx, "1:11", models.NewItem("alice", "second")))

		require.NoError(t, s.MarkAsRead(ctx, "1:10"))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[models.Key]models.Item{"1:11": models.NewItem("alice", "second")}, all)

		mine, err := s.GetUserItems(ctx, "alice")
		require.NoError(t, err)
		assert.NotContains(t, mine, models.Key("1:10"))
		assert.Contains(t, mine, models.Key("1:11"))

		read, err := s.Get(ctx, "1:10")
		require.NoError(t, err)
		require.NotNil(t, read)
		assert.True(t, read.IsRead())
		assert.Equal(t, "first", read.Content)
	})

	t.Run("user items are filtered by author", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		alice := models.NewItem("alice", "https://example.com/alice")
		bob := models.NewItem("bob", "https://example.com/bob")
		require.NoError(t, s.Set(ctx, "1:1", alice))
		require.NoError(t, s.Set(ctx, "2:1", bob))
		require.NoError(t, s.Set(ctx, "2:2", models.NewItem("bob", "seen already")))
		require.NoError(t, s.MarkAsRead(ctx, "2:2"))

		aliceItems, err := s.GetUserItems(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, map[models.Key]models.Item{"1:1": alice}, aliceItems)

		bobItems, err := s.GetUserItems(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, map[models.Key]models.Item{"2:1": bob}, bobItems)

		nobody, err := s.GetUserItems(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, nobody)
	})

	t.Run("random over nothing unread is nil", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)

		entry, err := s.GetRandom(ctx)
		require.NoError(t, err)
		assert.Nil(t, entry)

		require.NoError(t, s.Set(ctx, "1:1", models.NewItem("alice", "only")))
		require.NoError(t, s.MarkAsRead(ctx, "1:1"))

		entry, err = s.GetRandom(ctx)
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("random returns an unread member", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		unread := map[models.Key]models.Item{
			"1:1": models.NewItem("alice", "a"),
			"1:2": models.NewItem("bob", "b"),
			"1:3": models.NewItem("alice", "c"),
		}
		for key, item := range unread {
			require.NoError(t, s.Set(ctx, key, item))
		}
		require.NoError(t, s.Set(ctx, "1:4", models.NewItem("bob", "d")))
		require.NoError(t, s.MarkAsRead(ctx, "1:4"))

		for i := 0; i < 20; i++ {
			entry, err := s.GetRandom(ctx)
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, unread[entry.Key], entry.Item)
		}
	})

	t.Run("mark as read of a missing key fails", func(t *testing.T) {
		err := newStorage(t).MarkAsRead(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete removes the item", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		require.NoError(t, s.Set(ctx, "1:1", models.NewItem("alice", "gone soon")))

		require.NoError(t, s.Delete(ctx, "1:1"))

		got, err := s.Get(ctx, "1:1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("health check passes", func(t *testing.T) {
		assert.NoError(t, newStorage(t).HealthCheck(context.Background()))
	})
}

func TestFilterByAuthor(t *testing.T) {
	items := map[models.Key]models.Item{
		"a": models.NewItem("alice", "1"),
		"b": models.NewItem("bob", "2"),
	}

	assert.Equal(t, map[models.Key]models.Item{"a": items["a"]}, FilterByAuthor(items, "alice"))
	assert.Empty(t, FilterByAuthor(items, "carol"))
}

func TestPickRandom(t *testing.T) {
	assert.Nil(t, PickRandom(nil))

	items := map[models.Key]models.Item{"only": models.NewItem("alice", "x")}
	entry := PickRandom(items)
	require.NotNil(t, entry)
	assert.Equal(t, models.Key("only"), entry.Key)
}

func TestSortedKeys(t *testing.T) {
	items := map[models.Key]models.Item{"b": {}, "c": {}, "a": {}}
	assert.Equal(t, []models.Key{"a", "b", "c"}, SortedKeys(items))
}
