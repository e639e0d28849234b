package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/hrygo/atlas/plugin/ai/topic"
)

// Builder builds the city/road graph from topics.
type Builder struct {
	config GraphConfig
}

// NewBuilder creates a new Builder with the default configuration.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// NewBuilderWithConfig creates a builder with custom config.
// A threshold below 1 is raised to 1: a road always needs a shared item.
func NewBuilderWithConfig(config GraphConfig) *Builder {
	if config.ConnectionThreshold < LegacyConnectionThreshold {
		config.ConnectionThreshold = LegacyConnectionThreshold
	}
	return &Builder{config: config}
}

// Threshold returns the effective connection threshold.
func (b *Builder) Threshold() int {
	return b.config.ConnectionThreshold
}

// Build derives one city per non-empty topic, in topic order, and one road
// per city pair whose shared item count reaches the connection threshold.
// Cluster ids and positions are left zero. Road synthesis compares every
// pair, so the cost is quadratic in the number of topics.
func (b *Builder) Build(ctx context.Context, topics []*topic.Topic) (*Graph, error) {
	g := &Graph{
		Cities: []City{},
		Roads:  []Road{},
	}

	var members []map[topic.RefKey]struct{}
	for _, t := range topics {
		if t.Population() == 0 {
			continue
		}
		g.Cities = append(g.Cities, City{
			ID:         fmt.Sprintf("city-%d", len(g.Cities)+1),
			Name:       t.Key,
			Population: t.Population(),
			SizeTier:   SizeTierFor(t.Population()),
			FirstSeen:  t.FirstSeen,
			LastSeen:   t.LastSeen,
		})
		members = append(members, itemSet(t.Refs))
	}

	for i := range g.Cities {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "build roads")
		}
		for j := i + 1; j < len(g.Cities); j++ {
			g.Stats.PairsCompared++
			shared := intersect(members[i], members[j])
			if len(shared) < b.config.ConnectionThreshold {
				continue
			}
			g.Roads = append(g.Roads, Road{
				ID:            fmt.Sprintf("road-%d", len(g.Roads)+1),
				CityA:         g.Cities[i].ID,
				CityB:         g.Cities[j].ID,
				SharedItemIDs: shared,
				Strength:      len(shared),
				TypeTier:      RoadTierFor(len(shared)),
			})
		}
	}

	g.Stats.CityCount = len(g.Cities)
	g.Stats.RoadCount = len(g.Roads)
	return g, nil
}

// itemSet collects the distinct items referenced by a topic.
func itemSet(refs []topic.Ref) map[topic.RefKey]struct{} {
	set := make(map[topic.RefKey]struct{}, len(refs))
	for _, r := range refs {
		set[r.Key()] = struct{}{}
	}
	return set
}

// intersect returns the sorted ids of items present in both sets.
func intersect(a, b map[topic.RefKey]struct{}) []string {
	if len(a) > len(b) {
		a, b = b, a
	}
	var keys []topic.RefKey
	for k := range a {
		if _, ok := b[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ID != keys[j].ID {
			return keys[i].ID < keys[j].ID
		}
		return keys[i].Kind < keys[j].Kind
	})
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}
	return ids
}
