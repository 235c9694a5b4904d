package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/storefront/internal/clock"
	"github.com/redis/go-redis/v9"
)

const (
	defaultWindow = time.Minute
	defaultPrefix = "otp:"
)

// Config holds cooldown tuning parameters.
type Config struct {
	Window time.Duration
	Prefix string
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	return c
}

// Cooldown allows one action per identifier per window.
type Cooldown interface {
	// Acquire starts a window for id. While one is running it returns the
	// remaining wait and ErrRateLimited.
	Acquire(ctx context.Context, id string) (time.Duration, error)
	// Release ends the window for id early.
	Release(ctx context.Context, id string) error
}

// RedisCooldown keeps windows in Redis so they hold across processes.
type RedisCooldown struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedis creates a [RedisCooldown] backed by the given Redis client.
func NewRedis(redisClient redis.UniversalClient, cfg Config) *RedisCooldown {
	return &RedisCooldown{redis: redisClient, config: cfg.withDefaults()}
}

func (c *RedisCooldown) key(id string) string {
	return c.config.Prefix + id
}

// Acquire uses SET NX PX so concurrent callers cannot both start a window.
func (c *RedisCooldown) Acquire(ctx context.Context, id string) (time.Duration, error) {
	ok, err := c.redis.SetNX(ctx, c.key(id), 1, c.config.Window).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ok {
		return 0, nil
	}

	ttl, err := c.redis.PTTL(ctx, c.key(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// -1/-2 mean no TTL or a key that expired between the two calls.
	if ttl <= 0 {
		ttl = c.config.Window
	}
	return ttl, ErrRateLimited
}

func (c *RedisCooldown) Release(ctx context.Context, id string) error {
	if err := c.redis.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// MemoryCooldown keeps windows in process memory.
type MemoryCooldown struct {
	config Config
	clock  clock.Clock

	mu    sync.Mutex
	until map[string]time.Time
}

// NewMemory creates a [MemoryCooldown]. A nil clock means wall time.
func NewMemory(cfg Config, c clock.Clock) *MemoryCooldown {
	if c == nil {
		c = clock.Real()
	}
	return &MemoryCooldown{config: cfg.withDefaults(), clock: c, until: make(map[string]time.Time)}
}

func (m *MemoryCooldown) Acquire(_ context.Context, id string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.sweep(now)
	if end, ok := m.until[id]; ok {
		return end.Sub(now), ErrRateLimited
	}
	m.until[id] = now.Add(m.config.Window)
	return 0, nil
}

// sweep drops ended windows so the map only holds live cooldowns.
func (m *MemoryCooldown) sweep(now time.Time) {
	for id, end := range m.until {
		if !end.After(now) {
			delete(m.until, id)
		}
	}
}

func (m *MemoryCooldown) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.until, id)
	return nil
}
