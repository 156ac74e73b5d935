package storage

import (
	"context"
	"errors"
	"math/rand"
	"sort"

	"github.com/xaenox/watchlater-bot/internal/models"
)

var ErrNotFound = errors.New("item not found")

// Entry is a key together with the item stored under it
type Entry struct {
	Key  models.Key
	Item models.Item
}

// Storage is implemented by every backend.
// All listing methods return unread items only; Get may return read items.
type Storage interface {
	Set(ctx context.Context, key models.Key, item models.Item) error
	// Get returns nil without an error when nothing is stored under key
	Get(ctx context.Context, key models.Key) (*models.Item, error)
	GetAll(ctx context.Context) (map[models.Key]models.Item, error)
	GetUserItems(ctx context.Context, user string) (map[models.Key]models.Item, error)
	// GetRandom returns nil without an error when there is nothing unread
	GetRandom(ctx context.Context) (*Entry, error)
	MarkAsRead(ctx context.Context, key models.Key) error
	Delete(ctx context.Context, key models.Key) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// FilterByAuthor keeps the items added by user
func FilterByAuthor(items map[models.Key]models.Item, user string) map[models.Key]models.Item {
	filtered := make(map[models.Key]models.Item)
	for key, item := range items {
		if item.Author == user {
			filtered[key] = item
		}
	}
	return filtered
}

// PickRandom chooses one of the items uniformly, nil for an empty map
func PickRandom(items map[models.Key]models.Item) *Entry {
	if len(items) == 0 {
		return nil
	}

	keys := SortedKeys(items)
	key := keys[rand.Intn(len(keys))]
	return &Entry{Key: key, Item: items[key]}
}

// SortedKeys returns the map keys in ascending order
func SortedKeys(items map[models.Key]models.Item) []models.Key {
	keys := make([]models.Key, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})
	return keys
}
