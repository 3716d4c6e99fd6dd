// Package posts отвечает за посты: чтение через кэш, запись с инвалидацией, лайки и просмотры.
package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/metrics"
)

const (
	// DefaultTTL — срок жизни снимка в кэше.
	DefaultTTL = 900 * time.Second

	listKey = "post:list"

	// generationStripes — число счётчиков поколений; ключи раскладываются по хэшу.
	generationStripes = 256
)

// ErrCacheInvalidation — запись прошла, но снимок из кэша удалить не удалось.
var ErrCacheInvalidation = errors.New("post cache invalidation failed")

// PostKey — ключ снимка одного поста.
func PostKey(id int64) string {
	return fmt.Sprintf("post:%d", id)
}

// Cache — read-through кэш постов поверх domain.Cache.
//
// Для каждого ключа ведётся счётчик поколений: инвалидация увеличивает его,
// а загрузка кладёт снимок только если поколение не менялось с её начала.
// Счётчиков фиксированное число, ключи делят их по хэшу; коллизия лишь
// пропускает одно заполнение. Запись снимка и инвалидация идут под одним mutex.
type Cache struct {
	store domain.PostRepo
	cache domain.Cache
	ttl   time.Duration
	log   zerolog.Logger

	mu          sync.Mutex
	generations [generationStripes]uint64
}

// NewCache создаёт кэш постов.
func NewCache(store domain.PostRepo, cache domain.Cache, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store: store,
		cache: cache,
		ttl:   ttl,
		log:   logger,
	}
}

// GetPost возвращает пост из кэша или из БД с заполнением кэша.
func (c *Cache) GetPost(ctx context.Context, id int64) (domain.Post, error) {
	return getOrLoad(ctx, c, PostKey(id), "post", func(ctx context.Context) (domain.Post, error) {
		return c.store.GetPost(ctx, id)
	})
}

// ListPosts возвращает все посты, новые первыми. В кэш кладётся готовый массив.
func (c *Cache) ListPosts(ctx context.Context) ([]domain.Post, error) {
	return getOrLoad(ctx, c, listKey, "list", func(ctx context.Context) ([]domain.Post, error) {
		items, err := c.store.ListPosts(ctx)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []domain.Post{}
		}
		return items, nil
	})
}

// OnPostWritten удаляет снимок поста и списка. Вызывается до того, как запись считается успешной.
func (c *Cache) OnPostWritten(ctx context.Context, id int64) error {
	keys := []string{PostKey(id), listKey}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.generations[generationSlot(key)]++
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.log.Error().Err(err).Int64("post_id", id).Msg("posts: не удалось инвалидировать кэш")
		return fmt.Errorf("%w: %w", ErrCacheInvalidation, err)
	}
	return nil
}

func (c *Cache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[generationSlot(key)]
}

func generationSlot(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % generationStripes
}

func getOrLoad[T any](ctx context.Context, c *Cache, key, label string, load func(context.Context) (T, error)) (T, error) {
	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.ObserveCache(label, true)
			return cached, nil
		}
		c.log.Warn().Str("key", key).Msg("posts: повреждённый снимок в кэше, читаем из БД")
	case !errors.Is(err, domain.ErrCacheMiss):
		c.log.Warn().Err(err).Str("key", key).Msg("posts: кэш недоступен, читаем из БД")
	}
	metrics.ObserveCache(label, false)

	gen := c.generation(key)
	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.populate(ctx, key, gen, value)
	return value, nil
}

func (c *Cache) populate(ctx context.Context, key string, gen uint64, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("posts: не удалось сериализовать снимок")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[generationSlot(key)] != gen {
		c.log.Debug().Str("key", key).Msg("posts: снимок устарел, в кэш не кладём")
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("posts: не удалось заполнить кэш")
	}
}
