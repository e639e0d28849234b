// Package cluster partitions embedded topics with cosine k-means.
package cluster

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/hrygo/atlas/plugin/ai/vector"
)

const (
	// DefaultMaxIterations caps the assign/update rounds.
	DefaultMaxIterations = 10
	// DefaultEpsilon is the centroid displacement below which a cluster is settled.
	DefaultEpsilon = 0.001

	// ChooseK bounds.
	MinClusters      = 3
	MaxClusters      = 8
	TopicsPerCluster = 5
)

// Point is an embedded topic to cluster.
type Point struct {
	Key    string
	Vector []float64
}

// Config controls the iteration.
type Config struct {
	MaxIterations int
	Epsilon       float64
}

// DefaultConfig returns the canonical clustering configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		Epsilon:       DefaultEpsilon,
	}
}

// Cluster is one group of the partition.
type Cluster struct {
	ID       int       `json:"id"`
	Centroid []float64 `json:"-"`
	// Members are topic keys in input order.
	Members []string `json:"members"`
}

// Result is the outcome of a clustering run.
type Result struct {
	K           int
	Clusters    []Cluster
	Assignments map[string]int
	// Seeds are the initial centroids, indexed by cluster id.
	Seeds      [][]float64
	Iterations int
	Converged  bool
	// Skipped lists keys whose vector length differs from the first point's.
	Skipped []string
}

// ClusterOf returns the cluster id of key. Unclustered keys default to 0.
func (r *Result) ClusterOf(key string) int {
	if r == nil {
		return 0
	}
	return r.Assignments[key]
}

// ChooseK returns the cluster count for n embedded topics:
// round(n/5) clamped to [3, 8], and never more than n.
func ChooseK(n int) int {
	if n <= 0 {
		return 0
	}
	k := int(math.Round(float64(n) / TopicsPerCluster))
	k = min(max(k, MinClusters), MaxClusters)
	return min(k, n)
}

// KMeans partitions points into k groups, k = clamp(kReq, 1, n), by
// assigning every point to the centroid with the highest cosine similarity.
//
// Centroids are seeded from k distinct points drawn with rng. A cluster that
// receives no members keeps its previous centroid. Iteration stops once every
// centroid moved less than cfg.Epsilon, or after cfg.MaxIterations rounds.
// The only error returned is a context error.
func KMeans(ctx context.Context, points []Point, kReq int, rng *rand.Rand, cfg Config) (*Result, error) {
	points, skipped := uniformDimension(points)
	res := &Result{
		Assignments: make(map[string]int, len(points)),
		Skipped:     skipped,
	}
	n := len(points)
	if n == 0 {
		return res, nil
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	k := min(max(kReq, 1), n)
	res.K = k

	centroids := make([][]float64, k)
	res.Seeds = make([][]float64, k)
	for c, idx := range rng.Perm(n)[:k] {
		centroids[c] = vector.Clone(points[idx].Vector)
		res.Seeds[c] = vector.Clone(points[idx].Vector)
	}

	assign := make([]int, n)
	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "kmeans interrupted")
		}
		res.Iterations = iter

		for i, p := range points {
			assign[i] = nearest(p.Vector, centroids)
		}

		next := update(points, assign, centroids)
		settled := true
		for c := range centroids {
			if vector.Distance(centroids[c], next[c]) >= cfg.Epsilon {
				settled = false
			}
		}
		centroids = next
		if settled {
			res.Converged = true
			break
		}
	}

	res.Clusters = make([]Cluster, k)
	for c := range res.Clusters {
		res.Clusters[c] = Cluster{ID: c, Centroid: centroids[c]}
	}
	for i, p := range points {
		c := assign[i]
		res.Assignments[p.Key] = c
		res.Clusters[c].Members = append(res.Clusters[c].Members, p.Key)
	}
	return res, nil
}

// nearest returns the centroid index with maximum cosine similarity.
// Ties go to the lowest index.
func nearest(v []float64, centroids [][]float64) int {
	best, bestSim := 0, math.Inf(-1)
	for c, centroid := range centroids {
		if sim := vector.Cosine(v, centroid); sim > bestSim {
			best, bestSim = c, sim
		}
	}
	return best
}

// update returns the new centroids: the member mean, or the old centroid
// for clusters without members.
func update(points []Point, assign []int, centroids [][]float64) [][]float64 {
	members := make([][][]float64, len(centroids))
	for i, p := range points {
		members[assign[i]] = append(members[assign[i]], p.Vector)
	}
	next := make([][]float64, len(centroids))
	for c := range centroids {
		if len(members[c]) == 0 {
			next[c] = centroids[c]
			continue
		}
		next[c] = vector.Mean(members[c])
	}
	return next
}

// uniformDimension drops points without a vector or whose vector length
// differs from the first embedded point.
func uniformDimension(points []Point) (kept []Point, skipped []string) {
	dim := 0
	for _, p := range points {
		if len(p.Vector) == 0 {
			skipped = append(skipped, p.Key)
			continue
		}
		if dim == 0 {
			dim = len(p.Vector)
		}
		if len(p.Vector) != dim {
			skipped = append(skipped, p.Key)
			continue
		}
		kept = append(kept, p)
	}
	return kept, skipped
}
