package cluster

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/atlas/plugin/ai/vector"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func randomPoints(rng *rand.Rand, n, dim int) []Point {
	points := make([]Point, n)
	for i := range points {
		v := make([]float64, dim)
		for j := range v {
			v[j] = rng.Float64()*2 - 1
		}
		points[i] = Point{Key: fmt.Sprintf("topic-%02d", i), Vector: v}
	}
	return points
}

func TestChooseK(t *testing.T) {
	tests := []struct {
		n, expected int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 3},
		{10, 3},
		{12, 3},
		{13, 3},
		{20, 4},
		{23, 5},
		{40, 8},
		{50, 8},
		{500, 8},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.n), func(t *testing.T) {
			assert.Equal(t, tt.expected, ChooseK(tt.n))
		})
	}
}

func TestKMeans_Empty(t *testing.T) {
	res, err := KMeans(context.Background(), nil, 3, seeded(1), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, res.K)
	assert.Empty(t, res.Clusters)
	assert.Equal(t, 0, res.ClusterOf("anything"))
}

func TestKMeans_PartitionsEveryPoint(t *testing.T) {
	for _, n := range []int{1, 2, 5, 12, 40} {
		for _, k := range []int{1, 3, 8, 50} {
			t.Run(fmt.Sprintf("n=%d/k=%d", n, k), func(t *testing.T) {
				rng := seeded(uint64(n*100 + k))
				points := randomPoints(rng, n, 8)

				res, err := KMeans(context.Background(), points, k, rng, DefaultConfig())
				require.NoError(t, err)

				assert.Equal(t, min(k, n), res.K)
				require.Len(t, res.Clusters, res.K)
				assert.Len(t, res.Assignments, n)

				total := 0
				seen := make(map[string]bool)
				for id, c := range res.Clusters {
					assert.Equal(t, id, c.ID)
					total += len(c.Members)
					for _, key := range c.Members {
						assert.False(t, seen[key], "topic %s in two clusters", key)
						seen[key] = true
						assert.Equal(t, id, res.Assignments[key])
					}
				}
				assert.Equal(t, n, total)
				for _, c := range res.Assignments {
					assert.GreaterOrEqual(t, c, 0)
					assert.Less(t, c, res.K)
				}
			})
		}
	}
}

func TestKMeans_TwelveRandomTopics(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		rng := seeded(seed)
		points := randomPoints(rng, 12, 8)

		res, err := KMeans(context.Background(), points, ChooseK(len(points)), rng, DefaultConfig())
		require.NoError(t, err)

		assert.LessOrEqual(t, res.Iterations, DefaultMaxIterations)
		assert.GreaterOrEqual(t, res.Iterations, 1)
		for id, c := range res.Clusters {
			require.Len(t, c.Centroid, 8)
			if len(c.Members) == 0 {
				assert.True(t, vector.Equal(res.Seeds[id], c.Centroid),
					"seed %d: empty cluster %d centroid changed", seed, id)
			}
		}
	}
}

func TestKMeans_EmptyClusterKeepsSeed(t *testing.T) {
	// Identical vectors make every seed identical; ties resolve to cluster 0,
	// so clusters 1..3 never receive members.
	points := make([]Point, 4)
	for i := range points {
		points[i] = Point{Key: fmt.Sprintf("t%d", i), Vector: []float64{0.3, 0.4, 0.5}}
	}

	res, err := KMeans(context.Background(), points, 4, seeded(7), DefaultConfig())
	require.NoError(t, err)

	require.Len(t, res.Clusters, 4)
	assert.Len(t, res.Clusters[0].Members, 4)
	for c := 1; c < 4; c++ {
		assert.Empty(t, res.Clusters[c].Members)
		assert.Equal(t, res.Seeds[c], res.Clusters[c].Centroid)
	}
	assert.True(t, res.Converged)
}

func TestKMeans_SeparatesObviousGroups(t *testing.T) {
	points := []Point{
		{Key: "a1", Vector: []float64{1, 0.01, 0}},
		{Key: "a2", Vector: []float64{0.98, 0.02, 0}},
		{Key: "a3", Vector: []float64{0.99, 0, 0.01}},
		{Key: "b1", Vector: []float64{0, 1, 0.01}},
		{Key: "b2", Vector: []float64{0.01, 0.97, 0}},
		{Key: "b3", Vector: []float64{0, 0.99, 0.02}},
	}

	// Seed 3 and 11 are arbitrary; every seed that picks one point from each
	// group converges to the same partition.
	for _, seed := range []uint64{3, 11} {
		res, err := KMeans(context.Background(), points, 2, seeded(seed), DefaultConfig())
		require.NoError(t, err)
		if res.ClusterOf("a1") == res.ClusterOf("b1") {
			continue
		}
		assert.Equal(t, res.ClusterOf("a1"), res.ClusterOf("a2"))
		assert.Equal(t, res.ClusterOf("a1"), res.ClusterOf("a3"))
		assert.Equal(t, res.ClusterOf("b1"), res.ClusterOf("b2"))
		assert.Equal(t, res.ClusterOf("b1"), res.ClusterOf("b3"))
		assert.True(t, res.Converged)
	}
}

func TestKMeans_Deterministic(t *testing.T) {
	points := randomPoints(seeded(99), 30, 16)

	first, err := KMeans(context.Background(), points, 5, seeded(42), DefaultConfig())
	require.NoError(t, err)
	second, err := KMeans(context.Background(), points, 5, seeded(42), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Iterations, second.Iterations)
}

func TestKMeans_SkipsMismatchedDimensions(t *testing.T) {
	points := []Point{
		{Key: "a", Vector: []float64{1, 0}},
		{Key: "b", Vector: []float64{1, 0, 0}},
		{Key: "c", Vector: nil},
		{Key: "d", Vector: []float64{0, 1}},
	}

	res, err := KMeans(context.Background(), points, 3, seeded(1), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, res.K)
	assert.ElementsMatch(t, []string{"b", "c"}, res.Skipped)
	assert.NotContains(t, res.Assignments, "b")
}

func TestKMeans_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := KMeans(ctx, randomPoints(seeded(1), 5, 4), 2, seeded(1), DefaultConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNearestPrefersSimilarityOverDistance(t *testing.T) {
	// The long vector is far in Euclidean terms but points the same way.
	centroids := [][]float64{{0, 1}, {10, 0.1}}
	assert.Equal(t, 1, nearest([]float64{1, 0}, centroids))
}
