package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	c := New(cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Config{MaxItems: 10})

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "a", []byte("1"))
	v, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	c.Set(ctx, "a", []byte("2"))
	v, _ = c.Get(ctx, "a")
	assert.Equal(t, []byte("2"), v)
	assert.Equal(t, 1, c.Size())

	c.Delete(ctx, "a")
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)
}

func TestCache_LRUEviction(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var evicted []string
	c := newTestCache(t, Config{
		MaxItems: 2,
		OnEviction: func(key string) {
			mu.Lock()
			evicted = append(evicted, key)
			mu.Unlock()
		},
	})

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))
	_, _ = c.Get(ctx, "a") // b is now least recently used
	c.Set(ctx, "c", []byte("3"))

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	mu.Lock()
	assert.Equal(t, []string{"b"}, evicted)
	mu.Unlock()
}

func TestCache_TTL(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Config{MaxItems: 10, CleanupInterval: time.Hour})

	c.SetWithTTL(ctx, "short", []byte("x"), 10*time.Millisecond)
	c.SetWithTTL(ctx, "long", []byte("y"), time.Hour)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(ctx, "short")
	assert.False(t, ok)
	assert.Equal(t, 0, c.CleanupExpired())
	assert.Equal(t, 1, c.Size())
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New(Config{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
