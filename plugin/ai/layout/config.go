// Package layout positions map cities with a force-directed simulation.
//
// Cluster anchors are fixed on a circle around the canvas center. Each
// iteration applies pairwise inverse-square repulsion, spring attraction
// along roads and a linear pull toward the city's anchor, then integrates
// with damping and clamps every position into the padded canvas.
//
// Repulsion compares every pair of cities, so one run costs
// O(cities² · iterations). The engine is meant for thousands of cities,
// not millions.
package layout

import (
	"github.com/pkg/errors"
)

// Config controls the simulation.
type Config struct {
	Width   float64
	Height  float64
	Padding float64

	Iterations int
	// Jitter bounds the initial offset from the anchor on each axis.
	Jitter float64

	Repulsion float64
	// Softening is added to squared distances in the repulsion term.
	Softening  float64
	Attraction float64
	Cohesion   float64
	Damping    float64

	// AnchorRatio is the anchor circle radius as a fraction of min(Width, Height).
	AnchorRatio float64
}

// DefaultConfig returns the canonical layout configuration.
func DefaultConfig() Config {
	return Config{
		Width:       4000,
		Height:      3000,
		Padding:     100,
		Iterations:  50,
		Jitter:      100,
		Repulsion:   50000,
		Softening:   100,
		Attraction:  0.001,
		Cohesion:    0.01,
		Damping:     0.8,
		AnchorRatio: 0.35,
	}
}

// Validate checks that the configuration describes a usable canvas.
func (c Config) Validate() error {
	switch {
	case c.Padding < 0:
		return errors.Errorf("padding must be non-negative, got %v", c.Padding)
	case c.Width <= 2*c.Padding || c.Height <= 2*c.Padding:
		return errors.Errorf("canvas %vx%v leaves no room inside padding %v", c.Width, c.Height, c.Padding)
	case c.Iterations < 0:
		return errors.Errorf("iterations must be non-negative, got %d", c.Iterations)
	case c.Jitter < 0:
		return errors.Errorf("jitter must be non-negative, got %v", c.Jitter)
	case c.Softening <= 0:
		return errors.Errorf("softening must be positive, got %v", c.Softening)
	case c.Damping <= 0 || c.Damping > 1:
		return errors.Errorf("damping must be in (0, 1], got %v", c.Damping)
	case c.AnchorRatio < 0 || c.AnchorRatio > 0.5:
		return errors.Errorf("anchor ratio must be in [0, 0.5], got %v", c.AnchorRatio)
	case c.Repulsion < 0 || c.Attraction < 0 || c.Cohesion < 0:
		return errors.New("force constants must be non-negative")
	}
	return nil
}
