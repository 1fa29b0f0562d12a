package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// Cache holds snapshots of terminal recipes. Non-terminal recipes still
// change, so they are always read from the database.
type Cache interface {
	Get(ctx context.Context, id string) (*Recipe, bool)
	Set(ctx context.Context, rec *Recipe)
}

type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Get treats every Redis problem as a miss; the database stays authoritative.
func (c *RedisCache) Get(ctx context.Context, id string) (*Recipe, bool) {
	data, err := c.client.Get(ctx, c.prefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).WithField("recipe_id", id).Warn("Recipe cache read failed")
		}
		return nil, false
	}
	var rec Recipe
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (c *RedisCache) Set(ctx context.Context, rec *Recipe) {
	if !rec.Status.Terminal() {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+rec.ID, data, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("recipe_id", rec.ID).Warn("Recipe cache write failed")
	}
}

type memoryEntry struct {
	rec     Recipe
	expires time.Time
}

// MemoryCache is the single-process Cache. Entries expire after ttl like
// RedisCache, and at most maxEntries are kept.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache builds a cache; ttl <= 0 disables expiry and maxEntries <= 0
// falls back to DefaultMemoryCacheEntries.
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryCacheEntries
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

const DefaultMemoryCacheEntries = 1000

func (c *MemoryCache) Get(_ context.Context, id string) (*Recipe, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if c.expired(entry) {
		delete(c.entries, id)
		return nil, false
	}
	rec := entry.rec
	return &rec, true
}

func (c *MemoryCache) Set(_ context.Context, rec *Recipe) {
	if !rec.Status.Terminal() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[rec.ID]; !ok && len(c.entries) >= c.maxEntries {
		c.evict()
	}
	entry := memoryEntry{rec: *rec}
	if c.ttl > 0 {
		entry.expires = c.now().Add(c.ttl)
	}
	c.entries[rec.ID] = entry
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) expired(entry memoryEntry) bool {
	return !entry.expires.IsZero() && !c.now().Before(entry.expires)
}

// evict drops expired entries, or the one closest to expiry when none are.
// Caller holds mu.
func (c *MemoryCache) evict() {
	var oldestID string
	var oldest time.Time
	for id, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, id)
			continue
		}
		if oldestID == "" || entry.expires.Before(oldest) {
			oldestID, oldest = id, entry.expires
		}
	}
	if len(c.entries) >= c.maxEntries && oldestID != "" {
		delete(c.entries, oldestID)
	}
}

// CachedReader serves terminal recipes from cache and everything else from
// the repository.
type CachedReader struct {
	repo  *Repository
	cache Cache
}

func NewCachedReader(repo *Repository, cache Cache) *CachedReader {
	return &CachedReader{repo: repo, cache: cache}
}

func (r *CachedReader) Get(ctx context.Context, id string) (*Recipe, error) {
	if rec, ok := r.cache.Get(ctx, id); ok {
		return rec, nil
	}
	rec, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, rec)
	return rec, nil
}
