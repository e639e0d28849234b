package atlas

import (
	"github.com/pkg/errors"

	"github.com/hrygo/atlas/plugin/ai/cluster"
	"github.com/hrygo/atlas/plugin/ai/graph"
	"github.com/hrygo/atlas/plugin/ai/layout"
	"github.com/hrygo/atlas/plugin/ai/region"
)

// ErrInvalidOptions is returned by Validate and NewGenerator for unusable options.
var ErrInvalidOptions = errors.New("invalid atlas options")

// Options tunes every stage of map generation.
type Options struct {
	// Layout
	Width       float64
	Height      float64
	Padding     float64
	Iterations  int
	Jitter      float64
	Repulsion   float64
	Softening   float64
	Attraction  float64
	Cohesion    float64
	Damping     float64
	AnchorRatio float64

	// Graph
	ConnectionThreshold int
	// FallbackThreshold replaces ConnectionThreshold when no topic carries an embedding.
	FallbackThreshold int

	// Clustering
	MaxClusterIterations int
	Epsilon              float64

	// Regions
	RegionRadius float64
	Palette      []string
}

// DefaultOptions returns the canonical options.
func DefaultOptions() Options {
	l := layout.DefaultConfig()
	return Options{
		Width:       l.Width,
		Height:      l.Height,
		Padding:     l.Padding,
		Iterations:  l.Iterations,
		Jitter:      l.Jitter,
		Repulsion:   l.Repulsion,
		Softening:   l.Softening,
		Attraction:  l.Attraction,
		Cohesion:    l.Cohesion,
		Damping:     l.Damping,
		AnchorRatio: l.AnchorRatio,

		ConnectionThreshold: graph.DefaultConnectionThreshold,
		FallbackThreshold:   graph.LegacyConnectionThreshold,

		MaxClusterIterations: cluster.DefaultMaxIterations,
		Epsilon:              cluster.DefaultEpsilon,

		RegionRadius: region.DefaultRadius,
		Palette:      append([]string(nil), region.DefaultPalette...),
	}
}

// Validate reports whether the options can drive a generation.
func (o Options) Validate() error {
	if err := o.layoutConfig().Validate(); err != nil {
		return errors.Wrap(ErrInvalidOptions, err.Error())
	}
	switch {
	case o.ConnectionThreshold < 1:
		return errors.Wrapf(ErrInvalidOptions, "connection threshold must be at least 1, got %d", o.ConnectionThreshold)
	case o.FallbackThreshold < 1:
		return errors.Wrapf(ErrInvalidOptions, "fallback threshold must be at least 1, got %d", o.FallbackThreshold)
	case o.MaxClusterIterations < 1:
		return errors.Wrapf(ErrInvalidOptions, "max cluster iterations must be at least 1, got %d", o.MaxClusterIterations)
	case o.Epsilon <= 0:
		return errors.Wrapf(ErrInvalidOptions, "epsilon must be positive, got %v", o.Epsilon)
	case o.RegionRadius < 0:
		return errors.Wrapf(ErrInvalidOptions, "region radius must be non-negative, got %v", o.RegionRadius)
	case len(o.Palette) == 0:
		return errors.Wrap(ErrInvalidOptions, "palette is empty")
	}
	return nil
}

func (o Options) layoutConfig() layout.Config {
	return layout.Config{
		Width:       o.Width,
		Height:      o.Height,
		Padding:     o.Padding,
		Iterations:  o.Iterations,
		Jitter:      o.Jitter,
		Repulsion:   o.Repulsion,
		Softening:   o.Softening,
		Attraction:  o.Attraction,
		Cohesion:    o.Cohesion,
		Damping:     o.Damping,
		AnchorRatio: o.AnchorRatio,
	}
}

func (o Options) clusterConfig() cluster.Config {
	return cluster.Config{
		MaxIterations: o.MaxClusterIterations,
		Epsilon:       o.Epsilon,
	}
}

func (o Options) regionConfig() region.Config {
	return region.Config{
		Radius:  o.RegionRadius,
		Palette: o.Palette,
	}
}
