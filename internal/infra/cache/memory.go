package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"blog-backend/internal/domain"
)

var errNotStored = errors.New("memory cache: value rejected")

// MemoryCache реализует domain.Cache внутри процесса поверх ristretto.
// Используется, когда REDIS_ADDR не задан.
type MemoryCache struct {
	store *ristretto.Cache[string, []byte]
	// once сериализует Once, так как у ristretto нет SetNX.
	once sync.Mutex
}

var _ domain.Cache = (*MemoryCache)(nil)

// NewMemory создаёт кэш с ограничением по суммарному размеру значений.
func NewMemory(maxBytes int64) (*MemoryCache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryCache{store: store}, nil
}

// Close освобождает фоновые горутины ristretto.
func (c *MemoryCache) Close() {
	c.store.Close()
}

// Once выполняет функцию, если ключ ещё не задан.
func (c *MemoryCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	c.once.Lock()
	defer c.once.Unlock()
	if _, ok := c.store.Get(key); ok {
		return nil
	}
	if err := c.Set(ctx, key, []byte("1"), ttl); err != nil {
		return err
	}
	if err := fn(); err != nil {
		c.store.Del(key)
		return err
	}
	return nil
}

// Set задаёт значение и дожидается его применения, чтобы следующий Get его увидел.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cost := int64(len(value))
	if cost == 0 {
		cost = 1
	}
	if !c.store.SetWithTTL(key, value, cost, ttl) {
		return errNotStored
	}
	c.store.Wait()
	return nil
}

// Get возвращает значение или domain.ErrCacheMiss.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := c.store.Get(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return value, nil
}

// Delete удаляет ключи.
func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.store.Del(key)
	}
	return nil
}
