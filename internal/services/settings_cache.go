package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/huangang/replydesk/internal/config"
)

// SettingsCache holds a snapshot of the system settings table.
//
// Every Invalidate advances a generation counter. A reader captures the
// generation before it reads the table and passes it to Store, which drops
// the snapshot if an invalidation happened in between.
type SettingsCache interface {
	Load(ctx context.Context) (values map[string]string, found bool, err error)
	Generation(ctx context.Context) (uint64, error)
	Store(ctx context.Context, gen uint64, values map[string]string) (stored bool, err error)
	Invalidate(ctx context.Context) error
	Name() string
}

// NewSettingsCache picks Redis when it is enabled, memory otherwise.
func NewSettingsCache(cfg *config.RedisConfig) SettingsCache {
	if cfg != nil && cfg.Enabled {
		return NewRedisSettingsCache(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}, 10*time.Minute)
	}
	return NewMemorySettingsCache()
}

type MemorySettingsCache struct {
	mu     sync.RWMutex
	gen    uint64
	values map[string]string
}

func NewMemorySettingsCache() *MemorySettingsCache {
	return &MemorySettingsCache{}
}

func (c *MemorySettingsCache) Load(_ context.Context) (map[string]string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.values == nil {
		return nil, false, nil
	}
	return copyValues(c.values), true, nil
}

func (c *MemorySettingsCache) Generation(_ context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen, nil
}

func (c *MemorySettingsCache) Store(_ context.Context, gen uint64, values map[string]string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false, nil
	}
	c.values = copyValues(values)
	return true, nil
}

func (c *MemorySettingsCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.values = nil
	return nil
}

func (c *MemorySettingsCache) Name() string { return "memory" }

const (
	redisSettingsKey   = "replydesk:system_settings"
	redisGenerationKey = "replydesk:system_settings:gen"
)

var errStaleGeneration = errors.New("settings generation changed")

// RedisSettingsCache stores the snapshot as one JSON value so that replicas
// sharing Redis see invalidations from each other.
type RedisSettingsCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisSettingsCache(opt *redis.Options, ttl time.Duration) *RedisSettingsCache {
	return &RedisSettingsCache{Client: redis.NewClient(opt), TTL: ttl}
}

func (c *RedisSettingsCache) Load(ctx context.Context) (map[string]string, bool, error) {
	b, err := c.Client.Get(ctx, redisSettingsKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var values map[string]string
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, false, err
	}
	return values, true, nil
}

func (c *RedisSettingsCache) Generation(ctx context.Context) (uint64, error) {
	gen, err := c.Client.Get(ctx, redisGenerationKey).Uint64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// Store writes the snapshot under WATCH on the generation key, so an
// Invalidate from any replica between the read and the write aborts it.
func (c *RedisSettingsCache) Store(ctx context.Context, gen uint64, values map[string]string) (bool, error) {
	b, err := json.Marshal(values)
	if err != nil {
		return false, err
	}
	err = c.Client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, redisGenerationKey).Uint64()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, redisSettingsKey, b, c.TTL)
			return nil
		})
		return err
	}, redisGenerationKey)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, err
	}
}

func (c *RedisSettingsCache) Invalidate(ctx context.Context) error {
	_, err := c.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, redisGenerationKey)
		p.Del(ctx, redisSettingsKey)
		return nil
	})
	return err
}

func (c *RedisSettingsCache) Name() string { return "redis" }

func (c *RedisSettingsCache) Close() error { return c.Client.Close() }

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
