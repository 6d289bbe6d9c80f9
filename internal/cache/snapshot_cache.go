package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ze-codes/invest-agent/internal/domain/snapshot"
)

// Config tunes the Redis snapshot cache.
type Config struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultConfig returns the default cache settings.
func DefaultConfig() Config {
	return Config{
		Addr: "localhost:6379",
		TTL:  15 * time.Minute,
	}
}

// SnapshotCache stores computed snapshots in Redis keyed by
// (horizon, frozen-inputs id). Because the frozen-inputs id captures every
// input vintage, a cached value can never be stale with respect to data:
// new data produces a new key. The TTL only bounds memory.
type SnapshotCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New connects a snapshot cache to Redis.
func New(cfg Config) *SnapshotCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(client, cfg.TTL)
}

// NewWithClient wraps an existing client, used by tests with a mock.
func NewWithClient(client redis.UniversalClient, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultConfig().TTL
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot for a frozen input set, reporting a miss
// for absent keys.
func (c *SnapshotCache) Get(ctx context.Context, horizon, frozenID string) (*snapshot.Snapshot, bool, error) {
	data, err := c.client.Get(ctx, key(horizon, frozenID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return &snap, true, nil
}

// Put stores a snapshot under its frozen input set.
func (c *SnapshotCache) Put(ctx context.Context, horizon, frozenID string, snap *snapshot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key(horizon, frozenID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Ping verifies connectivity for health checks.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}

func key(horizon, frozenID string) string {
	return "snapshot:" + horizon + ":" + frozenID
}
