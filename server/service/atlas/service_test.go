package atlas

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aimap "github.com/hrygo/atlas/plugin/ai/atlas"
	"github.com/hrygo/atlas/plugin/ai/graph"
	mapErrors "github.com/hrygo/atlas/server/internal/errors"
	"github.com/hrygo/atlas/server/internal/observability"
	"github.com/hrygo/atlas/server/middleware"
	"github.com/hrygo/atlas/store"
)

type fakeStore struct {
	mu        sync.Mutex
	items     []*store.Item
	snapshots []*store.MapSnapshot
	listErr   error
	listCalls int
}

func (f *fakeStore) ListItems(ctx context.Context, find *store.FindItem) ([]*store.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var list []*store.Item
	for _, item := range f.items {
		if find.Creator != nil && item.Creator != *find.Creator {
			continue
		}
		if find.Kind != nil && item.Kind != *find.Kind {
			continue
		}
		list = append(list, item)
	}
	return list, nil
}

func (f *fakeStore) GetLatestMapSnapshot(_ context.Context, creator string) (*store.MapSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *store.MapSnapshot
	for _, s := range f.snapshots {
		if s.Creator == creator && (latest == nil || s.Version > latest.Version) {
			latest = s
		}
	}
	return latest, nil
}

func (f *fakeStore) CreateMapSnapshot(_ context.Context, create *store.MapSnapshot) (*store.MapSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.snapshots {
		if s.Creator == create.Creator && s.Version == create.Version {
			return nil, errors.Errorf("duplicate version %d", create.Version)
		}
	}
	created := *create
	created.ID = int32(len(f.snapshots) + 1)
	f.snapshots = append(f.snapshots, &created)
	return &created, nil
}

// blockingStore holds ListItems until release is closed.
type blockingStore struct {
	*fakeStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore(items []*store.Item) *blockingStore {
	return &blockingStore{
		fakeStore: &fakeStore{items: items},
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (b *blockingStore) ListItems(ctx context.Context, find *store.FindItem) ([]*store.Item, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.fakeStore.ListItems(ctx, find)
}

func (f *fakeStore) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

func gardenItems(creator string) []*store.Item {
	return []*store.Item{
		{UID: "n1", Creator: creator, Kind: store.ItemKindNote, CreatedTs: 100, Tags: []string{"gardening", "cooking"}},
		{UID: "n2", Creator: creator, Kind: store.ItemKindNote, CreatedTs: 200, Tags: []string{"gardening"}},
		{UID: "p1", Creator: creator, Kind: store.ItemKindProject, CreatedTs: 150, LastActiveTs: 400, Tags: []string{"gardening"}},
		{UID: "r1", Creator: "someone-else", Kind: store.ItemKindReadingItem, CreatedTs: 50, Tags: []string{"travel"}},
	}
}

func newTestService(t *testing.T, st Store, limiter *middleware.RateLimiter) (*Service, *observability.Metrics) {
	t.Helper()
	generator, err := aimap.NewGenerator(aimap.DefaultOptions(), nil)
	require.NoError(t, err)
	metrics := observability.NewMetrics()
	svc := NewService(st, generator, Config{
		Limiter: limiter,
		Metrics: metrics,
		NewRand: func() *rand.Rand { return rand.New(rand.NewPCG(7, 7)) },
		Now:     func() time.Time { return time.Unix(1700000000, 0) },
	})
	t.Cleanup(func() { _ = svc.Close() })
	return svc, metrics
}

func TestGetMap_GeneratesThenCaches(t *testing.T) {
	ctx := context.Background()
	st := &fakeStore{items: gardenItems("alice")}
	svc, metrics := newTestService(t, st, nil)

	state, err := svc.GetMap(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.Version)
	require.Len(t, state.Cities, 2)

	gardening, ok := state.CityByName("gardening")
	require.True(t, ok)
	assert.Equal(t, 3, gardening.Population)
	assert.Equal(t, graph.SizeVillage, gardening.SizeTier)
	require.Len(t, state.Roads, 1)
	assert.Equal(t, []string{"n1"}, state.Roads[0].SharedItemIDs)
	assert.Empty(t, state.Doors)
	assert.Equal(t, 3, state.Stats.ItemCount)

	require.Equal(t, 1, st.snapshotCount())
	assert.Equal(t, 3, st.snapshots[0].ItemCount)
	assert.Equal(t, int64(1700000000), st.snapshots[0].CreatedTs)
	assert.NotEmpty(t, st.snapshots[0].UID)

	again, err := svc.GetMap(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, state.Version, again.Version)
	assert.Equal(t, 1, st.snapshotCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Generations.WithLabelValues("ok")))
}

func TestGetMap_LoadsStoredSnapshot(t *testing.T) {
	ctx := context.Background()
	stored := &aimap.MapState{
		Cities:   []graph.City{{ID: "city-0", Name: "stored", Population: 1}},
		Version:  7,
		Viewport: aimap.DefaultViewport,
	}
	payload, err := json.Marshal(stored)
	require.NoError(t, err)
	st := &fakeStore{snapshots: []*store.MapSnapshot{{UID: "s7", Creator: "alice", Version: 7, Payload: payload}}}
	svc, _ := newTestService(t, st, nil)

	state, err := svc.GetMap(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), state.Version)
	_, ok := state.CityByName("stored")
	assert.True(t, ok)
	assert.Equal(t, 0, st.listCalls, "no generation when a snapshot exists")
}

func TestGetMap_UnreadableSnapshotRegenerates(t *testing.T) {
	st := &fakeStore{
		items:     gardenItems("alice"),
		snapshots: []*store.MapSnapshot{{UID: "bad", Creator: "alice", Version: 2, Payload: []byte("{")}},
	}
	svc, _ := newTestService(t, st, nil)

	state, err := svc.GetMap(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), state.Version)
}

func TestRegenerate_VersionsAndRateLimit(t *testing.T) {
	ctx := context.Background()
	st := &fakeStore{items: gardenItems("alice")}
	svc, metrics := newTestService(t, st, middleware.NewRateLimiterWithLimit(time.Hour, 2))

	first, err := svc.Regenerate(ctx, "alice")
	require.NoError(t, err)
	second, err := svc.Regenerate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, int64(2), second.Version)

	_, err = svc.Regenerate(ctx, "alice")
	require.Error(t, err)
	assert.True(t, mapErrors.IsCode(err, mapErrors.ErrCodeRateLimitExceeded))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RateLimited))

	// Limits are per user.
	other, err := svc.Regenerate(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, other.Cities)

	latest, err := svc.GetMap(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.Version)
}

func TestRegenerate_Errors(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name   string
		ctx    context.Context
		user   string
		st     *fakeStore
		expect mapErrors.ErrorCode
	}{
		{
			name:   "empty user",
			ctx:    context.Background(),
			user:   "",
			st:     &fakeStore{},
			expect: mapErrors.ErrCodeInvalidArgument,
		},
		{
			name:   "store failure",
			ctx:    context.Background(),
			user:   "alice",
			st:     &fakeStore{listErr: errors.New("connection refused")},
			expect: mapErrors.ErrCodeStoreUnavailable,
		},
		{
			name:   "canceled",
			ctx:    canceled,
			user:   "alice",
			st:     &fakeStore{items: gardenItems("alice")},
			expect: mapErrors.ErrCodeContextCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, tt.st, nil)
			_, err := svc.Regenerate(tt.ctx, tt.user)
			require.Error(t, err)
			assert.Equal(t, tt.expect, mapErrors.GetCodeFromError(err, ""))
			assert.Equal(t, 0, tt.st.snapshotCount())
		})
	}
}

func TestFilterCities(t *testing.T) {
	ctx := context.Background()
	st := &fakeStore{items: gardenItems("alice")}
	svc, _ := newTestService(t, st, nil)

	filtered, err := svc.FilterCities(ctx, "alice", graph.GraphFilter{Expression: `population >= 3`})
	require.NoError(t, err)
	require.Len(t, filtered.Cities, 1)
	assert.Equal(t, "gardening", filtered.Cities[0].Name)
	assert.Empty(t, filtered.Roads)

	_, err = svc.FilterCities(ctx, "alice", graph.GraphFilter{Expression: `population +`})
	require.Error(t, err)
	assert.True(t, mapErrors.IsCode(err, mapErrors.ErrCodeInvalidArgument))
}

func TestLoadItems_Order(t *testing.T) {
	st := &fakeStore{items: []*store.Item{
		{UID: "b", Creator: "alice", Kind: store.ItemKindProject, CreatedTs: 10},
		{UID: "a", Creator: "alice", Kind: store.ItemKindProject, CreatedTs: 10},
		{UID: "z", Creator: "alice", Kind: store.ItemKindNote, CreatedTs: 10},
		{UID: "first", Creator: "alice", Kind: store.ItemKindReadingItem, CreatedTs: 1},
	}}
	svc, _ := newTestService(t, st, nil)

	items, err := svc.loadItems(context.Background(), "alice")
	require.NoError(t, err)
	uids := make([]string, 0, len(items))
	for _, item := range items {
		uids = append(uids, item.UID)
	}
	assert.Equal(t, []string{"first", "z", "a", "b"}, uids)
	assert.Equal(t, len(store.ItemKinds), st.listCalls)
}

func TestToTopicItem(t *testing.T) {
	item := toTopicItem(&store.Item{
		UID:          "p1",
		Kind:         store.ItemKindProject,
		CreatedTs:    0,
		LastActiveTs: 1700000000,
		Tags:         []string{"go"},
		Embedding:    []float32{1, 0},
	})
	assert.Equal(t, "p1", item.ID)
	assert.True(t, item.CreatedAt.IsZero())
	assert.Equal(t, int64(1700000000), item.LastActive.Unix())
	ts, ok := item.Timestamp()
	require.True(t, ok)
	assert.Equal(t, item.LastActive, ts)
	assert.Equal(t, []float32{1, 0}, item.Embedding)
}

func TestRegenerate_ConcurrentCallsShareVersion(t *testing.T) {
	st := &fakeStore{items: gardenItems("alice")}
	svc, _ := newTestService(t, st, middleware.NewRateLimiterWithLimit(0, 1))

	var wg sync.WaitGroup
	versions := make([]int64, 8)
	for i := range versions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := svc.Regenerate(context.Background(), "alice")
			if err == nil {
				versions[i] = state.Version
			}
		}()
	}
	wg.Wait()

	// Every stored version is unique even under concurrency.
	seen := map[int64]bool{}
	for _, s := range st.snapshots {
		assert.False(t, seen[s.Version])
		seen[s.Version] = true
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	assert.Positive(t, versions[len(versions)-1])
}

func TestRegenerate_CallerCancelDoesNotFailOthers(t *testing.T) {
	st := newBlockingStore(gardenItems("alice"))
	svc, _ := newTestService(t, st, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Regenerate(firstCtx, "alice")
		firstErr <- err
	}()
	<-st.entered

	type result struct {
		state *aimap.MapState
		err   error
	}
	second := make(chan result, 1)
	go func() {
		state, err := svc.Regenerate(context.Background(), "alice")
		second <- result{state, err}
	}()

	cancelFirst()
	err := <-firstErr
	require.Error(t, err)
	assert.Equal(t, mapErrors.ErrCodeContextCanceled, mapErrors.GetCodeFromError(err, ""))

	close(st.release)
	res := <-second
	require.NoError(t, res.err)
	require.NotNil(t, res.state)
	assert.Len(t, res.state.Cities, 2)

	// The canceled caller's generation still completes and is stored.
	require.Eventually(t, func() bool { return st.snapshotCount() >= 1 }, time.Second, 10*time.Millisecond)
	latest, err := st.GetLatestMapSnapshot(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, res.state.Version, latest.Version)
}
