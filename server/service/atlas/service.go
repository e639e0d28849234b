// Package atlas serves per-user knowledge maps: it loads item snapshots from
// the store, runs the map generator, persists versioned snapshots and keeps
// the latest map of each user in the tiered cache.
package atlas

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/singleflight"

	"github.com/hrygo/atlas/internal/profile"
	aimap "github.com/hrygo/atlas/plugin/ai/atlas"
	"github.com/hrygo/atlas/plugin/ai/graph"
	mapErrors "github.com/hrygo/atlas/server/internal/errors"
	"github.com/hrygo/atlas/server/internal/observability"
	"github.com/hrygo/atlas/server/middleware"
	"github.com/hrygo/atlas/store"
	"github.com/hrygo/atlas/store/cache"
)

// Store is the subset of the store the map service needs.
type Store interface {
	ListItems(ctx context.Context, find *store.FindItem) ([]*store.Item, error)
	GetLatestMapSnapshot(ctx context.Context, creator string) (*store.MapSnapshot, error)
	CreateMapSnapshot(ctx context.Context, create *store.MapSnapshot) (*store.MapSnapshot, error)
}

// Config holds the optional collaborators and limits of a Service.
// Zero values are replaced by defaults in NewService.
type Config struct {
	Cache   *cache.TieredCache
	Limiter *middleware.RateLimiter
	Metrics *observability.Metrics
	Logger  *slog.Logger

	// Timeout bounds one generation.
	Timeout time.Duration
	// CacheTTL is how long a map stays in the cache.
	CacheTTL time.Duration
	// ClusterCount is passed to the generator; zero derives k from the topic count.
	ClusterCount int
	// NewRand returns the random source of one generation. Nil seeds from entropy.
	NewRand func() *rand.Rand
	Now     func() time.Time
}

// Service generates, stores and caches knowledge maps.
type Service struct {
	store     Store
	generator *aimap.Generator
	cache     *cache.TieredCache
	limiter   *middleware.RateLimiter
	metrics   *observability.Metrics
	logger    *slog.Logger

	timeout      time.Duration
	cacheTTL     time.Duration
	clusterCount int
	newRand      func() *rand.Rand
	now          func() time.Time

	group singleflight.Group
}

// NewService creates a map service.
func NewService(st Store, generator *aimap.Generator, config Config) *Service {
	if config.Cache == nil {
		config.Cache = cache.NewTieredCache(cache.DefaultTieredConfig(), nil)
	}
	if config.Limiter == nil {
		config.Limiter = middleware.NewRateLimiter()
	}
	if config.Metrics == nil {
		config.Metrics = observability.NewMetrics()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 10 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Service{
		store:        st,
		generator:    generator,
		cache:        config.Cache,
		limiter:      config.Limiter,
		metrics:      config.Metrics,
		logger:       config.Logger,
		timeout:      config.Timeout,
		cacheTTL:     config.CacheTTL,
		clusterCount: config.ClusterCount,
		newRand:      config.NewRand,
		now:          config.Now,
	}
}

// NewServiceFromProfile wires a service from the runtime profile. A Redis L2
// cache is attached when the profile names one.
func NewServiceFromProfile(p *profile.Profile, st Store, metrics *observability.Metrics, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	generator, err := aimap.NewGenerator(p.MapOptions(), logger)
	if err != nil {
		return nil, err
	}

	var l2 cache.RedisCacheInterface
	if p.IsRedisEnabled() {
		redisConfig := cache.DefaultRedisConfig()
		redisConfig.Addr = p.RedisAddr
		redisConfig.Password = p.RedisPassword
		redisConfig.DB = p.RedisDB
		redisConfig.DefaultTTL = p.CacheTTL
		rc, err := cache.NewRedisCache(redisConfig)
		if err != nil {
			// The map cache is an optimization; run on L1 alone.
			logger.Warn("redis cache unavailable, using memory cache only",
				slog.String("addr", p.RedisAddr),
				slog.String("error", err.Error()))
		} else {
			l2 = rc
		}
	}

	tieredConfig := cache.DefaultTieredConfig()
	tieredConfig.L1MaxItems = p.CacheCapacity
	tieredConfig.L1TTL = p.CacheTTL
	tieredConfig.L2TTL = p.CacheTTL

	return NewService(st, generator, Config{
		Cache:        cache.NewTieredCache(tieredConfig, l2),
		Limiter:      middleware.NewRateLimiterWithLimit(p.RegenerateInterval, p.RegenerateBurst),
		Metrics:      metrics,
		Logger:       logger,
		Timeout:      p.GenerationTimeout,
		CacheTTL:     p.CacheTTL,
		ClusterCount: p.MapClusterCount,
	}), nil
}

// Metrics returns the service metrics.
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

// CacheStats reports the map cache tiers and the L1 entry count.
func (s *Service) CacheStats() map[string]any {
	return s.cache.Stats()
}

// Close releases the cache.
func (s *Service) Close() error {
	return s.cache.Close()
}

func mapCacheKey(userID string) string {
	return cache.GenerateCacheKey("map", userID, "latest")
}

// GetMap returns the latest map of userID, reading the cache first, then the
// newest stored snapshot. A user without any snapshot gets a freshly
// generated map, which is not subject to the regeneration rate limit.
func (s *Service) GetMap(ctx context.Context, userID string) (*aimap.MapState, error) {
	if userID == "" {
		return nil, mapErrors.InvalidArgument("user id is required")
	}

	key := mapCacheKey(userID)
	if payload, ok := s.cache.Get(ctx, key, nil); ok {
		if state, err := decodeState(payload); err == nil {
			s.metrics.RecordCacheLookup(true)
			return state, nil
		}
		s.cache.Delete(ctx, key)
	}
	s.metrics.RecordCacheLookup(false)

	snapshot, err := s.store.GetLatestMapSnapshot(ctx, userID)
	if err != nil {
		return nil, mapErrors.FromContext(err, mapErrors.ErrCodeStoreUnavailable, "load map snapshot").
			WithContext("user", userID)
	}
	if snapshot != nil {
		state, err := decodeState(snapshot.Payload)
		if err == nil {
			s.cache.SetWithTTL(ctx, key, snapshot.Payload, s.cacheTTL)
			return state, nil
		}
		s.logger.Warn("discarding unreadable map snapshot",
			slog.String("user", userID),
			slog.String("snapshot", snapshot.UID),
			slog.String("error", err.Error()))
	}

	return s.regenerate(ctx, userID)
}

// Regenerate builds a new map version for userID from the current items.
// Calls are rate limited per user, and concurrent calls for one user share
// a single generation.
func (s *Service) Regenerate(ctx context.Context, userID string) (*aimap.MapState, error) {
	if userID == "" {
		return nil, mapErrors.InvalidArgument("user id is required")
	}
	if !s.limiter.Allow(userID) {
		s.metrics.RecordRateLimited()
		return nil, mapErrors.RateLimitExceeded("map regeneration rate limit exceeded").
			WithContext("user", userID)
	}
	return s.regenerate(ctx, userID)
}

// FilterCities returns the cities and roads of the latest map that match filter.
func (s *Service) FilterCities(ctx context.Context, userID string, filter graph.GraphFilter) (*graph.Graph, error) {
	state, err := s.GetMap(ctx, userID)
	if err != nil {
		return nil, err
	}
	filtered, err := graph.ApplyFilter(state.Graph(), filter)
	if err != nil {
		return nil, mapErrors.Wrap(err, mapErrors.ErrCodeInvalidArgument, "invalid city filter")
	}
	return filtered, nil
}

// regenerate joins or starts the user's shared generation. The shared work
// is detached from any single caller's cancellation; each caller stops
// waiting when its own ctx is done.
func (s *Service) regenerate(ctx context.Context, userID string) (*aimap.MapState, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapErrors.FromContext(err, mapErrors.ErrCodeGenerationFailed, "wait for map generation").
			WithContext("user", userID)
	}
	ch := s.group.DoChan(userID, func() (any, error) {
		return s.generate(context.WithoutCancel(ctx), userID)
	})
	select {
	case <-ctx.Done():
		return nil, mapErrors.FromContext(ctx.Err(), mapErrors.ErrCodeGenerationFailed, "wait for map generation").
			WithContext("user", userID)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("map generation shared", slog.String("user", userID))
		}
		return res.Val.(*aimap.MapState), nil
	}
}

func (s *Service) generate(ctx context.Context, userID string) (*aimap.MapState, error) {
	reqCtx := observability.FromContextOrNew(ctx, s.logger, "generate_map", userID)

	// Step 1: Load the item snapshot and the previous version.
	items, err := s.loadItems(ctx, userID)
	if err != nil {
		reqCtx.Error("failed to load items", err, slog.String(observability.LogFieldStage, "load_items"))
		return nil, mapErrors.FromContext(err, mapErrors.ErrCodeStoreUnavailable, "load items").
			WithContext("user", userID)
	}
	previous, err := s.store.GetLatestMapSnapshot(ctx, userID)
	if err != nil {
		reqCtx.Error("failed to load map snapshot", err, slog.String(observability.LogFieldStage, "load_snapshot"))
		return nil, mapErrors.FromContext(err, mapErrors.ErrCodeStoreUnavailable, "load map snapshot").
			WithContext("user", userID)
	}
	version := int64(1)
	if previous != nil {
		version = previous.Version + 1
	}

	// Step 2: Generate under the timeout.
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var rng *rand.Rand
	if s.newRand != nil {
		rng = s.newRand()
	}
	start := time.Now()
	state, err := s.generator.Generate(genCtx, aimap.Request{
		Items:        toTopicItems(items),
		ClusterCount: s.clusterCount,
		Rand:         rng,
		Version:      version,
	})
	if err != nil {
		s.metrics.RecordGeneration(time.Since(start), 0, err)
		reqCtx.Error("map generation failed", err,
			slog.String(observability.LogFieldStage, "generate"),
			slog.Int64(observability.LogFieldVersion, version))
		return nil, mapErrors.FromContext(err, mapErrors.ErrCodeGenerationFailed, "generate map").
			WithContext("user", userID)
	}
	s.metrics.RecordGeneration(time.Since(start), len(state.Cities), nil)

	// Step 3: Persist the snapshot.
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, mapErrors.GenerationFailed("encode map", err)
	}
	snapshot, err := s.store.CreateMapSnapshot(ctx, &store.MapSnapshot{
		UID:       shortuuid.New(),
		Creator:   userID,
		Version:   version,
		ItemCount: len(items),
		Payload:   payload,
		CreatedTs: s.now().Unix(),
	})
	if err != nil {
		reqCtx.Error("failed to store map snapshot", err, slog.String(observability.LogFieldStage, "persist"))
		return nil, mapErrors.FromContext(err, mapErrors.ErrCodeStoreUnavailable, "store map snapshot").
			WithContext("user", userID)
	}

	// Step 4: Refresh the cache.
	s.cache.SetWithTTL(ctx, mapCacheKey(userID), payload, s.cacheTTL)

	reqCtx.Info("map generated",
		slog.Int64(observability.LogFieldVersion, version),
		slog.String("snapshot", snapshot.UID),
		slog.Int("items", len(items)),
		slog.Int("cities", len(state.Cities)),
		slog.Int("roads", len(state.Roads)),
		slog.Int("regions", len(state.Regions)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
	)
	return state, nil
}

func decodeState(payload []byte) (*aimap.MapState, error) {
	state := &aimap.MapState{}
	if err := json.Unmarshal(payload, state); err != nil {
		return nil, err
	}
	return state, nil
}
