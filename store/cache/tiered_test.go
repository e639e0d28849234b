package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryL2 is an in-process stand-in for Redis.
type memoryL2 struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	closed bool
}

func newMemoryL2() *memoryL2 {
	return &memoryL2{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryL2) Set(ctx context.Context, key string, value []byte) {
	m.SetWithTTL(ctx, key, value, 0)
}

func (m *memoryL2) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
}

func (m *memoryL2) ttl(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func (m *memoryL2) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memoryL2) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *memoryL2) Close() error {
	m.closed = true
	return nil
}

func TestTieredCache_L2PromotesToL1(t *testing.T) {
	ctx := context.Background()
	l2 := newMemoryL2()
	tc := NewTieredCache(nil, l2)
	defer tc.Close()

	l2.Set(ctx, "k", []byte("from-l2"))
	v, ok := tc.Get(ctx, "k", nil)
	require.True(t, ok)
	assert.Equal(t, []byte("from-l2"), v)

	l2.Delete(ctx, "k")
	v, ok = tc.Get(ctx, "k", nil)
	require.True(t, ok, "promoted into L1")
	assert.Equal(t, []byte("from-l2"), v)
}

func TestTieredCache_L3Fetch(t *testing.T) {
	ctx := context.Background()
	l2 := newMemoryL2()
	tc := NewTieredCache(nil, l2)
	defer tc.Close()

	calls := 0
	fetch := func(context.Context, string) ([]byte, error) {
		calls++
		return []byte("from-db"), nil
	}

	v, ok := tc.Get(ctx, "k", fetch)
	require.True(t, ok)
	assert.Equal(t, []byte("from-db"), v)
	_, ok = tc.Get(ctx, "k", fetch)
	require.True(t, ok)
	assert.Equal(t, 1, calls)

	stored, ok := l2.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("from-db"), stored)

	_, ok = tc.Get(ctx, "err", func(context.Context, string) ([]byte, error) {
		return nil, errors.New("db down")
	})
	assert.False(t, ok)
}

func TestTieredCache_DeleteAndClose(t *testing.T) {
	ctx := context.Background()
	l2 := newMemoryL2()
	tc := NewTieredCache(nil, l2)

	tc.Set(ctx, "k", []byte("v1"))
	tc.Delete(ctx, "k")
	_, ok := tc.Get(ctx, "k", nil)
	assert.False(t, ok)
	_, ok = l2.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, tc.Close())
	assert.True(t, l2.closed)
}

func TestTieredCache_L2TTL(t *testing.T) {
	tests := []struct {
		name  string
		l2TTL time.Duration
		write func(ctx context.Context, tc *TieredCache)
		want  time.Duration
	}{
		{
			name:  "set uses configured ttl",
			l2TTL: 45 * time.Minute,
			write: func(ctx context.Context, tc *TieredCache) { tc.Set(ctx, "k", []byte("v")) },
			want:  45 * time.Minute,
		},
		{
			name:  "fetched values use configured ttl",
			l2TTL: 20 * time.Minute,
			write: func(ctx context.Context, tc *TieredCache) {
				tc.Get(ctx, "k", func(context.Context, string) ([]byte, error) { return []byte("v"), nil })
			},
			want: 20 * time.Minute,
		},
		{
			name:  "explicit ttl wins",
			l2TTL: 45 * time.Minute,
			write: func(ctx context.Context, tc *TieredCache) { tc.SetWithTTL(ctx, "k", []byte("v"), time.Minute) },
			want:  time.Minute,
		},
		{
			name:  "zero falls back to l2 default",
			l2TTL: 0,
			write: func(ctx context.Context, tc *TieredCache) { tc.Set(ctx, "k", []byte("v")) },
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l2 := newMemoryL2()
			cfg := DefaultTieredConfig()
			cfg.L2TTL = tt.l2TTL
			tc := NewTieredCache(cfg, l2)
			defer tc.Close()

			tt.write(ctx, tc)
			_, ok := l2.Get(ctx, "k")
			require.True(t, ok)
			assert.Equal(t, tt.want, l2.ttl("k"))
		})
	}
}

func TestTieredCache_L1Only(t *testing.T) {
	ctx := context.Background()
	tc := NewTieredCache(DefaultTieredConfig(), nil)
	defer tc.Close()

	tc.Set(ctx, "k", []byte("v"))
	v, ok := tc.Get(ctx, "k", nil)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	stats := tc.Stats()
	assert.Equal(t, true, stats["l1_enabled"])
	assert.Equal(t, false, stats["l2_enabled"])
	assert.Equal(t, 1, stats["l1_size"])
}
