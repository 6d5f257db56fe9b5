package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is how long an export stays cached.
const DefaultTTL = 10 * time.Minute

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager handles export caching with a Redis backend.
type Manager struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewManager creates a cache manager. A ttl of 0 uses DefaultTTL.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		redis:  redisClient,
		ttl:    ttl,
		logger: log.With().Str("component", "export-cache").Logger(),
	}
}

// TTL returns the entry lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Generation returns the current cache generation, 0 if never invalidated.
func (m *Manager) Generation(ctx context.Context) (int64, error) {
	gen, err := m.redis.Get(ctx, GenerationKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		CacheErrors.WithLabelValues("generation").Inc()
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

// Key resolves the key for an export under the current generation. Resolve
// once per run and use the same key for Get and Set, so a result computed
// across an invalidation is stored under the old generation.
func (m *Manager) Key(ctx context.Context, statusQuery, deliveryDate string) (Key, error) {
	gen, err := m.Generation(ctx)
	if err != nil {
		return Key{}, err
	}
	return Key{Generation: gen, StatusQuery: statusQuery, DeliveryDate: deliveryDate}, nil
}

// Get retrieves a cached export.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return &entry, nil
}

// Set stores an encoded export under key for the manager's TTL.
func (m *Manager) Set(ctx context.Context, key Key, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("cache data cannot be empty")
	}

	now := time.Now()
	entry := Entry{
		Data:     json.RawMessage(data),
		Expires:  now.Add(m.ttl),
		CachedAt: now,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), raw, m.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Invalidate bumps the generation so every earlier entry is unreachable.
// Returns the new generation.
func (m *Manager) Invalidate(ctx context.Context) (int64, error) {
	gen, err := m.redis.Incr(ctx, GenerationKey).Result()
	if err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return 0, fmt.Errorf("redis incr generation: %w", err)
	}

	CacheInvalidations.Inc()
	m.logger.Info().Int64("generation", gen).Msg("Export cache invalidated")
	return gen, nil
}

// Ping checks the Redis connection.
func (m *Manager) Ping(ctx context.Context) error {
	return m.redis.Ping(ctx).Err()
}
