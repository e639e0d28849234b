package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Config configures the in-memory L1 cache.
type Config struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	MaxItems        int
	// OnEviction is called, without the lock held, for entries dropped by
	// capacity or expiry.
	OnEviction func(key string)
}

// Cache is an in-memory LRU cache with per-entry TTL. A background
// goroutine drops expired entries until Close is called.
type Cache struct {
	config Config

	mu    sync.Mutex
	items map[string]*entry
	order *list.List

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	element   *list.Element
}

// New creates a cache and starts its cleanup loop.
func New(config Config) *Cache {
	if config.MaxItems <= 0 {
		config.MaxItems = 1000
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	c := &Cache{
		config: config,
		items:  make(map[string]*entry),
		order:  list.New(),
		stop:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.cleanupLoop()
	return c
}

// Get returns the value of key if present and not expired.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	e, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeEntry(e)
		c.mu.Unlock()
		c.evicted(key)
		return nil, false
	}
	c.order.MoveToFront(e.element)
	value := e.value
	c.mu.Unlock()
	return value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores value under key, evicting the least recently used entry when full.
func (c *Cache) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	c.mu.Lock()
	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(e.element)
		c.mu.Unlock()
		return
	}

	var dropped []string
	for len(c.items) >= c.config.MaxItems {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		e := oldest.Value.(*entry)
		c.removeEntry(e)
		dropped = append(dropped, e.key)
	}

	e := &entry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	e.element = c.order.PushFront(e)
	c.items[key] = e
	c.mu.Unlock()

	for _, k := range dropped {
		c.evicted(k)
	}
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		c.removeEntry(e)
	}
}

// Size returns the number of entries, expired ones included until cleanup.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops the cleanup loop.
func (c *Cache) Close() error {
	c.once.Do(func() {
		close(c.stop)
	})
	c.wg.Wait()
	return nil
}

// CleanupExpired removes all expired entries and returns how many were removed.
func (c *Cache) CleanupExpired() int {
	now := time.Now()
	var dropped []string

	c.mu.Lock()
	for key, e := range c.items {
		if now.After(e.expiresAt) {
			c.removeEntry(e)
			dropped = append(dropped, key)
		}
	}
	c.mu.Unlock()

	for _, k := range dropped {
		c.evicted(k)
	}
	return len(dropped)
}

func (c *Cache) cleanupLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-c.stop:
			return
		}
	}
}

// removeEntry must be called with the lock held.
func (c *Cache) removeEntry(e *entry) {
	c.order.Remove(e.element)
	delete(c.items, e.key)
}

func (c *Cache) evicted(key string) {
	if c.config.OnEviction != nil {
		c.config.OnEviction(key)
	}
}
