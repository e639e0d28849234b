// Package atlas turns a snapshot of knowledge items into a renderable map.
//
// A generation runs five stages over call-local state: topic aggregation,
// cosine k-means over embedded topics, city and road synthesis from shared
// items, force-directed layout around cluster anchors and region assembly.
// A Generator holds no mutable state, so concurrent Generate calls are safe.
package atlas

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/atlas/plugin/ai/cluster"
	"github.com/hrygo/atlas/plugin/ai/graph"
	"github.com/hrygo/atlas/plugin/ai/layout"
	"github.com/hrygo/atlas/plugin/ai/region"
	"github.com/hrygo/atlas/plugin/ai/topic"
)

// Request is the input of one generation.
type Request struct {
	Items []topic.Item
	// ClusterCount is the requested k. Zero picks k from the embedded topic count.
	ClusterCount int
	// Rand drives centroid seeding and layout jitter. Nil seeds from entropy.
	Rand     *rand.Rand
	Viewport Viewport
	Version  int64
}

// Generator runs the map pipeline.
type Generator struct {
	opts   Options
	logger *slog.Logger
}

// NewGenerator validates opts and returns a Generator. A nil logger discards output.
func NewGenerator(opts Options, logger *slog.Logger) (*Generator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{opts: opts, logger: logger}, nil
}

// Options returns the generator's options.
func (g *Generator) Options() Options {
	return g.opts
}

// Generate builds a MapState from req. Degenerate input never fails: no
// items yield an empty map, and without embeddings every city lands in
// cluster 0 around a single central anchor with the fallback road threshold.
// Errors are returned only when ctx is done.
func (g *Generator) Generate(ctx context.Context, req Request) (*MapState, error) {
	start := time.Now()
	rng := req.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	viewport := req.Viewport
	if viewport == (Viewport{}) {
		viewport = DefaultViewport
	}

	state := emptyState(viewport, req.Version)
	state.Stats.ItemCount = len(req.Items)

	// Step 1: aggregate items into topics
	topics := topic.Aggregate(req.Items)
	embedded := topics.Embedded()
	state.Stats.TopicCount = topics.Len()
	state.Stats.EmbeddedTopicCount = len(embedded)
	g.logger.Debug("topics aggregated", "items", len(req.Items), "topics", topics.Len(), "embedded", len(embedded))
	if topics.Len() == 0 {
		state.Stats.BuildTime = time.Since(start)
		return state, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "generate map")
	}

	// Step 2: cluster embedded topics
	var clusters *cluster.Result
	if len(embedded) > 0 {
		points := make([]cluster.Point, 0, len(embedded))
		for _, t := range embedded {
			points = append(points, cluster.Point{Key: t.Key, Vector: t.Embedding})
		}
		k := req.ClusterCount
		if k <= 0 {
			k = cluster.ChooseK(len(points))
		}
		var err error
		clusters, err = cluster.KMeans(ctx, points, k, rng, g.opts.clusterConfig())
		if err != nil {
			return nil, errors.Wrap(err, "generate map")
		}
		for _, t := range topics.Topics() {
			t.ClusterID = clusters.ClusterOf(t.Key)
		}
		state.Stats.ClusterCount = clusters.K
		state.Stats.ClusterIterations = clusters.Iterations
		state.Stats.ClusterConverged = clusters.Converged
		g.logger.Debug("topics clustered", "k", clusters.K, "iterations", clusters.Iterations,
			"converged", clusters.Converged, "skipped", len(clusters.Skipped))
	}

	// Step 3: build cities and roads
	threshold := g.opts.ConnectionThreshold
	if len(embedded) == 0 {
		threshold = g.opts.FallbackThreshold
	}
	builder := graph.NewBuilderWithConfig(graph.GraphConfig{ConnectionThreshold: threshold})
	built, err := builder.Build(ctx, topics.Topics())
	if err != nil {
		return nil, errors.Wrap(err, "generate map")
	}
	for i := range built.Cities {
		if t, ok := topics.Get(built.Cities[i].Name); ok {
			built.Cities[i].ClusterID = t.ClusterID
		}
	}
	state.Stats.ConnectionThreshold = builder.Threshold()
	state.Stats.PairsCompared = built.Stats.PairsCompared
	g.logger.Debug("graph built", "cities", len(built.Cities), "roads", len(built.Roads), "threshold", builder.Threshold())

	// Step 4: lay out cities around cluster anchors
	k := 0
	if clusters != nil {
		k = clusters.K
	}
	nodes, edges := layoutInput(built)
	placed, err := layout.Run(ctx, g.opts.layoutConfig(), nodes, edges, k, rng)
	if err != nil {
		return nil, errors.Wrap(err, "generate map")
	}
	for i, p := range placed.Positions {
		built.Cities[i].X = p.X
		built.Cities[i].Y = p.Y
	}
	state.Stats.LayoutIterations = placed.Iterations
	g.logger.Debug("layout settled", "iterations", placed.Iterations, "anchors", len(placed.Anchors))

	// Step 5: assemble regions
	if clusters != nil {
		anchors := make([]region.Point, len(placed.Anchors))
		for i, a := range placed.Anchors {
			anchors[i] = region.Point{X: a.X, Y: a.Y}
		}
		state.Regions = region.Assemble(clusters.Clusters, anchors, built.Cities, g.opts.regionConfig())
	}

	state.Cities = built.Cities
	state.Roads = built.Roads
	state.Stats.BuildTime = time.Since(start)
	g.logger.Debug("map generated", "cities", len(state.Cities), "roads", len(state.Roads),
		"regions", len(state.Regions), "duration", state.Stats.BuildTime)
	return state, nil
}

// layoutInput maps cities to simulation nodes and roads to edges by city index.
func layoutInput(g *graph.Graph) ([]layout.Node, []layout.Edge) {
	index := make(map[string]int, len(g.Cities))
	nodes := make([]layout.Node, len(g.Cities))
	for i, c := range g.Cities {
		index[c.ID] = i
		nodes[i] = layout.Node{ClusterID: c.ClusterID}
	}
	edges := make([]layout.Edge, 0, len(g.Roads))
	for _, r := range g.Roads {
		a, okA := index[r.CityA]
		b, okB := index[r.CityB]
		if !okA || !okB {
			continue
		}
		edges = append(edges, layout.Edge{A: a, B: b, Strength: float64(r.Strength)})
	}
	return nodes, edges
}
