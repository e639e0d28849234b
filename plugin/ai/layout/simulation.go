package layout

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// Node is a city to place. ClusterID selects its anchor; ids outside the
// anchor range fall back to anchor 0.
type Node struct {
	ClusterID int
}

// Edge is a road between two node indices.
type Edge struct {
	A, B     int
	Strength float64
}

// Result is the outcome of a layout run.
type Result struct {
	Positions  []r2.Vec
	Anchors    []r2.Vec
	Iterations int
}

// Anchors places k anchors evenly on a circle of radius
// AnchorRatio·min(Width, Height) around the canvas center, starting at angle
// zero. With k = 0 a single anchor sits at the center.
func Anchors(cfg Config, k int) []r2.Vec {
	center := r2.Vec{X: cfg.Width / 2, Y: cfg.Height / 2}
	if k <= 0 {
		return []r2.Vec{center}
	}
	radius := cfg.AnchorRatio * math.Min(cfg.Width, cfg.Height)
	anchors := make([]r2.Vec, k)
	for i := range anchors {
		angle := 2 * math.Pi * float64(i) / float64(k)
		anchors[i] = r2.Vec{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		}
	}
	return anchors
}

// Simulation holds the state of one layout run. It is not safe for
// concurrent use.
type Simulation struct {
	cfg       Config
	anchors   []r2.Vec
	nodes     []Node
	edges     []Edge
	pos       []r2.Vec
	vel       []r2.Vec
	force     []r2.Vec
	iteration int
}

// NewSimulation seeds every node at its anchor plus a uniform jitter drawn
// from rng, with zero velocity. k is the number of clusters.
func NewSimulation(cfg Config, nodes []Node, edges []Edge, k int, rng *rand.Rand) *Simulation {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Simulation{
		cfg:     cfg,
		anchors: Anchors(cfg, k),
		nodes:   nodes,
		edges:   edges,
		pos:     make([]r2.Vec, len(nodes)),
		vel:     make([]r2.Vec, len(nodes)),
		force:   make([]r2.Vec, len(nodes)),
	}
	for i := range nodes {
		jitter := r2.Vec{
			X: (rng.Float64()*2 - 1) * cfg.Jitter,
			Y: (rng.Float64()*2 - 1) * cfg.Jitter,
		}
		s.pos[i] = s.clamp(r2.Add(s.anchorOf(i), jitter))
	}
	return s
}

// Step advances the simulation by one iteration.
func (s *Simulation) Step() {
	for i := range s.force {
		s.force[i] = r2.Vec{}
	}
	s.applyRepulsion()
	s.applyAttraction()
	s.applyCohesion()

	for i := range s.pos {
		s.vel[i] = r2.Scale(s.cfg.Damping, r2.Add(s.vel[i], s.force[i]))
		s.pos[i] = s.clamp(r2.Add(s.pos[i], s.vel[i]))
	}
	s.iteration++
}

// Run steps until the configured iteration count is reached.
func (s *Simulation) Run(ctx context.Context) error {
	for s.iteration < s.cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "layout interrupted at iteration %d", s.iteration)
		}
		s.Step()
	}
	return nil
}

// Positions returns a copy of the current positions.
func (s *Simulation) Positions() []r2.Vec {
	out := make([]r2.Vec, len(s.pos))
	copy(out, s.pos)
	return out
}

// Anchors returns the cluster anchors.
func (s *Simulation) Anchors() []r2.Vec {
	return s.anchors
}

// Iteration returns the number of completed iterations.
func (s *Simulation) Iteration() int {
	return s.iteration
}

// applyRepulsion pushes every pair apart with force
// Repulsion·d / (|d|² + Softening)^1.5. Coincident nodes exert no force.
func (s *Simulation) applyRepulsion() {
	if s.cfg.Repulsion == 0 {
		return
	}
	for i := range s.pos {
		for j := i + 1; j < len(s.pos); j++ {
			d := r2.Sub(s.pos[i], s.pos[j])
			dist2 := r2.Norm2(d) + s.cfg.Softening
			f := r2.Scale(s.cfg.Repulsion/(dist2*math.Sqrt(dist2)), d)
			s.force[i] = r2.Add(s.force[i], f)
			s.force[j] = r2.Sub(s.force[j], f)
		}
	}
}

// applyAttraction pulls road endpoints together proportionally to their
// displacement and the road strength.
func (s *Simulation) applyAttraction() {
	for _, e := range s.edges {
		if e.A == e.B || e.A < 0 || e.B < 0 || e.A >= len(s.pos) || e.B >= len(s.pos) {
			continue
		}
		f := r2.Scale(s.cfg.Attraction*e.Strength, r2.Sub(s.pos[e.B], s.pos[e.A]))
		s.force[e.A] = r2.Add(s.force[e.A], f)
		s.force[e.B] = r2.Sub(s.force[e.B], f)
	}
}

// applyCohesion pulls every node toward its anchor at a constant rate.
func (s *Simulation) applyCohesion() {
	for i := range s.pos {
		pull := r2.Scale(s.cfg.Cohesion, r2.Sub(s.anchorOf(i), s.pos[i]))
		s.force[i] = r2.Add(s.force[i], pull)
	}
}

func (s *Simulation) anchorOf(i int) r2.Vec {
	c := s.nodes[i].ClusterID
	if c < 0 || c >= len(s.anchors) {
		c = 0
	}
	return s.anchors[c]
}

func (s *Simulation) clamp(p r2.Vec) r2.Vec {
	return r2.Vec{
		X: clamp(p.X, s.cfg.Padding, s.cfg.Width-s.cfg.Padding),
		Y: clamp(p.Y, s.cfg.Padding, s.cfg.Height-s.cfg.Padding),
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Run lays out nodes and edges around k cluster anchors.
func Run(ctx context.Context, cfg Config, nodes []Node, edges []Edge, k int, rng *rand.Rand) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sim := NewSimulation(cfg, nodes, edges, k, rng)
	if err := sim.Run(ctx); err != nil {
		return nil, err
	}
	return &Result{
		Positions:  sim.Positions(),
		Anchors:    sim.Anchors(),
		Iterations: sim.Iteration(),
	}, nil
}
