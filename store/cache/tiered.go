package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// TieredCache layers an in-memory L1 over an optional Redis L2, with an
// optional L3 fetch callback on miss. L2 hits are promoted into L1.
type TieredCache struct {
	l1        *Cache
	l2        RedisCacheInterface
	l2TTL     time.Duration
	l1Enabled bool
	l2Enabled bool
}

// L3Fetcher fetches a value from the source of truth.
type L3Fetcher func(ctx context.Context, key string) ([]byte, error)

// TieredCacheConfig holds the configuration for the tiered cache.
type TieredCacheConfig struct {
	L1MaxItems int
	L1TTL      time.Duration
	// L2TTL applies to L2 writes without an explicit TTL. Zero uses the
	// L2's own default.
	L2TTL    time.Duration
	EnableL1 bool
}

// DefaultTieredConfig returns the default tiered cache configuration.
func DefaultTieredConfig() *TieredCacheConfig {
	return &TieredCacheConfig{
		L1MaxItems: 1000,
		L1TTL:      10 * time.Minute,
		L2TTL:      30 * time.Minute,
		EnableL1:   true,
	}
}

// NewTieredCache creates a tiered cache. A nil l2 disables the second tier.
func NewTieredCache(config *TieredCacheConfig, l2 RedisCacheInterface) *TieredCache {
	if config == nil {
		config = DefaultTieredConfig()
	}

	tc := &TieredCache{
		l1Enabled: config.EnableL1,
		l2Enabled: l2 != nil,
		l2:        l2,
		l2TTL:     config.L2TTL,
	}
	if config.EnableL1 {
		tc.l1 = New(Config{
			DefaultTTL:      config.L1TTL,
			CleanupInterval: time.Minute,
			MaxItems:        config.L1MaxItems,
		})
	}
	return tc
}

// Get retrieves a value from the cache, checking L1, then L2, then L3.
func (t *TieredCache) Get(ctx context.Context, key string, fetcher L3Fetcher) ([]byte, bool) {
	if t.l1Enabled {
		if value, found := t.l1.Get(ctx, key); found {
			return value, true
		}
	}

	if t.l2Enabled {
		if value, found := t.l2.Get(ctx, key); found {
			if t.l1Enabled {
				t.l1.Set(ctx, key, value)
			}
			return value, true
		}
	}

	if fetcher == nil {
		return nil, false
	}
	value, err := fetcher(ctx, key)
	if err != nil || value == nil {
		return nil, false
	}
	t.Set(ctx, key, value)
	return value, true
}

// Set stores a value in L1 under the L1 TTL and in L2 under the L2 TTL.
func (t *TieredCache) Set(ctx context.Context, key string, value []byte) {
	if t.l1Enabled {
		t.l1.Set(ctx, key, value)
	}
	if !t.l2Enabled {
		return
	}
	if t.l2TTL > 0 {
		t.l2.SetWithTTL(ctx, key, value, t.l2TTL)
		return
	}
	t.l2.Set(ctx, key, value)
}

// SetWithTTL stores a value with custom TTL.
func (t *TieredCache) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if t.l1Enabled {
		t.l1.SetWithTTL(ctx, key, value, ttl)
	}
	if t.l2Enabled {
		t.l2.SetWithTTL(ctx, key, value, ttl)
	}
}

// Delete removes a value from both L1 and L2.
func (t *TieredCache) Delete(ctx context.Context, key string) {
	if t.l1Enabled {
		t.l1.Delete(ctx, key)
	}
	if t.l2Enabled {
		t.l2.Delete(ctx, key)
	}
}

// Stats returns cache statistics.
func (t *TieredCache) Stats() map[string]any {
	stats := map[string]any{
		"l1_enabled": t.l1Enabled,
		"l2_enabled": t.l2Enabled,
	}
	if t.l1Enabled {
		stats["l1_size"] = t.l1.Size()
	}
	return stats
}

// Close closes all cache connections.
func (t *TieredCache) Close() error {
	var errs []error
	if t.l2 != nil {
		if err := t.l2.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if t.l1 != nil {
		if err := t.l1.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("multiple errors: %v", errs)
	}
	return nil
}
