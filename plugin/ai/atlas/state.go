package atlas

import (
	"time"

	"github.com/hrygo/atlas/plugin/ai/graph"
	"github.com/hrygo/atlas/plugin/ai/region"
)

// Viewport is the initial camera the renderer should use.
type Viewport struct {
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	Zoom float64 `json:"zoom" yaml:"zoom"`
}

// DefaultViewport is used when a request carries a zero viewport.
var DefaultViewport = Viewport{Zoom: 1}

// Door is reserved for portals between maps. Generation never produces one.
type Door struct {
	ID     string `json:"id"`
	CityID string `json:"city_id"`
	Target string `json:"target"`
}

// MapState is the renderable output of one generation.
type MapState struct {
	Cities   []graph.City    `json:"cities"`
	Roads    []graph.Road    `json:"roads"`
	Regions  []region.Region `json:"regions"`
	Doors    []Door          `json:"doors"`
	Viewport Viewport        `json:"viewport"`
	Version  int64           `json:"version"`
	Stats    Stats           `json:"stats"`
}

// Stats summarizes a generation.
type Stats struct {
	ItemCount           int           `json:"item_count"`
	TopicCount          int           `json:"topic_count"`
	EmbeddedTopicCount  int           `json:"embedded_topic_count"`
	ClusterCount        int           `json:"cluster_count"`
	ClusterIterations   int           `json:"cluster_iterations"`
	ClusterConverged    bool          `json:"cluster_converged"`
	ConnectionThreshold int           `json:"connection_threshold"`
	PairsCompared       int           `json:"pairs_compared"`
	LayoutIterations    int           `json:"layout_iterations"`
	BuildTime           time.Duration `json:"build_time"`
}

// City returns the city with the given id.
func (m *MapState) City(id string) (graph.City, bool) {
	for _, c := range m.Cities {
		if c.ID == id {
			return c, true
		}
	}
	return graph.City{}, false
}

// CityByName returns the city built from the named topic.
func (m *MapState) CityByName(name string) (graph.City, bool) {
	for _, c := range m.Cities {
		if c.Name == name {
			return c, true
		}
	}
	return graph.City{}, false
}

// Graph returns the cities and roads as a graph, for filtering.
func (m *MapState) Graph() *graph.Graph {
	return &graph.Graph{
		Cities: m.Cities,
		Roads:  m.Roads,
		Stats: graph.GraphStats{
			CityCount: len(m.Cities),
			RoadCount: len(m.Roads),
		},
	}
}

func emptyState(viewport Viewport, version int64) *MapState {
	return &MapState{
		Cities:   []graph.City{},
		Roads:    []graph.Road{},
		Regions:  []region.Region{},
		Doors:    []Door{},
		Viewport: viewport,
		Version:  version,
	}
}
