// Package graph derives the city and road graph of a knowledge map.
package graph

import (
	"time"
)

// SizeTier classifies a city by population.
type SizeTier string

// SizeTier constants, smallest first.
const (
	SizeHomestead  SizeTier = "homestead"
	SizeVillage    SizeTier = "village"
	SizeTown       SizeTier = "town"
	SizeCity       SizeTier = "city"
	SizeMetropolis SizeTier = "metropolis"
)

// RoadTier classifies a road by strength.
type RoadTier string

// RoadTier constants, weakest first.
const (
	RoadTrail   RoadTier = "trail"
	RoadCountry RoadTier = "country"
	RoadMain    RoadTier = "main"
	RoadHighway RoadTier = "highway"
)

// City is a topic rendered as a map node.
type City struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Population int       `json:"population"`
	SizeTier   SizeTier  `json:"size_tier"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	ClusterID  int       `json:"cluster_id"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// Road connects two cities sharing items.
type Road struct {
	ID            string   `json:"id"`
	CityA         string   `json:"city_a"`
	CityB         string   `json:"city_b"`
	SharedItemIDs []string `json:"shared_item_ids"`
	Strength      int      `json:"strength"`
	TypeTier      RoadTier `json:"type_tier"`
}

// Graph is the complete city/road structure.
type Graph struct {
	Cities []City     `json:"cities"`
	Roads  []Road     `json:"roads"`
	Stats  GraphStats `json:"stats"`
}

// GraphStats contains graph statistics.
type GraphStats struct {
	CityCount     int `json:"city_count"`
	RoadCount     int `json:"road_count"`
	PairsCompared int `json:"pairs_compared"`
}

const (
	// DefaultConnectionThreshold is the minimum shared item count for a road.
	DefaultConnectionThreshold = 3
	// LegacyConnectionThreshold connects any two cities sharing an item.
	// It is used when no topic carries an embedding.
	LegacyConnectionThreshold = 1
)

// GraphConfig contains configuration for graph building.
type GraphConfig struct {
	// ConnectionThreshold is the minimum number of shared items for a road.
	ConnectionThreshold int
}

// DefaultConfig returns default graph configuration.
func DefaultConfig() GraphConfig {
	return GraphConfig{
		ConnectionThreshold: DefaultConnectionThreshold,
	}
}

// SizeTierFor returns the size tier of a population.
// Breakpoints are inclusive lower bounds.
func SizeTierFor(population int) SizeTier {
	switch {
	case population >= 50:
		return SizeMetropolis
	case population >= 20:
		return SizeCity
	case population >= 10:
		return SizeTown
	case population >= 3:
		return SizeVillage
	default:
		return SizeHomestead
	}
}

// RoadTierFor returns the type tier of a road strength.
func RoadTierFor(strength int) RoadTier {
	switch {
	case strength >= 11:
		return RoadHighway
	case strength >= 6:
		return RoadMain
	case strength >= 3:
		return RoadCountry
	default:
		return RoadTrail
	}
}
