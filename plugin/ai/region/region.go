// Package region turns clusters into named, colored map regions.
package region

import (
	"fmt"

	"github.com/hrygo/atlas/plugin/ai/cluster"
	"github.com/hrygo/atlas/plugin/ai/graph"
)

// DefaultRadius is the display radius of every region.
const DefaultRadius = 600.0

// DefaultPalette assigns colors by cluster id modulo its length.
var DefaultPalette = []string{
	"#4F86C6", // blue
	"#E07A5F", // terracotta
	"#81B29A", // sage
	"#F2CC8F", // sand
	"#9B5DE5", // violet
	"#F15BB5", // pink
	"#00BBF9", // sky
	"#3D405B", // slate
}

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Region is a named container of clustered cities.
type Region struct {
	ID        string   `json:"id"`
	ClusterID int      `json:"cluster_id"`
	Name      string   `json:"name"`
	Center    Point    `json:"center"`
	Radius    float64  `json:"radius"`
	CityIDs   []string `json:"city_ids"`
	Color     string   `json:"color"`
}

// Config controls region assembly.
type Config struct {
	Radius  float64
	Palette []string
}

// DefaultConfig returns the canonical region configuration.
func DefaultConfig() Config {
	return Config{
		Radius:  DefaultRadius,
		Palette: DefaultPalette,
	}
}

// Assemble builds one region per cluster with at least one member topic.
// The region is named after the cluster's first member topic, centered on
// its anchor, and lists the cities built from the cluster's member topics,
// in city order. Cities of unembedded topics belong to no region. Region ids
// are 1-based in build order. Clusters without an anchor are centered at the
// origin.
func Assemble(clusters []cluster.Cluster, anchors []Point, cities []graph.City, cfg Config) []Region {
	if len(cfg.Palette) == 0 {
		cfg.Palette = DefaultPalette
	}

	regions := []Region{}
	for _, c := range clusters {
		if len(c.Members) == 0 {
			continue
		}
		var center Point
		if c.ID >= 0 && c.ID < len(anchors) {
			center = anchors[c.ID]
		}
		members := make(map[string]bool, len(c.Members))
		for _, m := range c.Members {
			members[m] = true
		}
		ids := []string{}
		for _, city := range cities {
			if members[city.Name] {
				ids = append(ids, city.ID)
			}
		}
		regions = append(regions, Region{
			ID:        fmt.Sprintf("region-%d", len(regions)+1),
			ClusterID: c.ID,
			Name:      c.Members[0] + " Region",
			Center:    center,
			Radius:    cfg.Radius,
			CityIDs:   ids,
			Color:     ColorFor(c.ID, cfg.Palette),
		})
	}
	return regions
}

// ColorFor returns palette[clusterID mod len(palette)].
func ColorFor(clusterID int, palette []string) string {
	if len(palette) == 0 {
		return ""
	}
	i := clusterID % len(palette)
	if i < 0 {
		i += len(palette)
	}
	return palette[i]
}
