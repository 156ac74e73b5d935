package storage

import (
	"context"
	"sync"
	"time"

	"github.com/xaenox/watchlater-bot/internal/models"
)

// MemoryStorage keeps items for the lifetime of the process
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[models.Key]models.Item
	now   func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items: make(map[models.Key]models.Item),
		now:   time.Now,
	}
}

var _ Storage = (*MemoryStorage)(nil)

func (s *MemoryStorage) Set(ctx context.Context, key models.Key, item models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = item
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, key models.Key) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[key]; exists {
		return &item, nil
	}
	return nil, nil
}

func (s *MemoryStorage) GetAll(ctx context.Context) (map[models.Key]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unread := make(map[models.Key]models.Item)
	for key, item := range s.items {
		if !item.IsRead() {
			unread[key] = item
		}
	}
	return unread, nil
}

func (s *MemoryStorage) GetUserItems(ctx context.Context, user string) (map[models.Key]models.Item, error) {
	items, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByAuthor(items, user), nil
}

func (s *MemoryStorage) GetRandom(ctx context.Context) (*Entry, error) {
	items, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return PickRandom(items), nil
}

func (s *MemoryStorage) MarkAsRead(ctx context.Context, key models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[key]
	if !exists {
		return ErrNotFound
	}

	item.MarkRead(s.now())
	s.items[key] = item
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

func (s *MemoryStorage) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
