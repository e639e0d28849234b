package graph

import (
	"slices"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// GraphFilter contains filter criteria for map views.
type GraphFilter struct {
	Names         []string   // Filter by city name, case-insensitive
	MinPopulation int        // Minimum population
	Tiers         []SizeTier // Filter by size tier
	Clusters      []int      // Filter by cluster IDs
	// Expression is a CEL boolean over name, population, tier and cluster,
	// e.g. `population >= 10 && tier != "town"`.
	Expression string
}

// CityPredicate is a compiled filter expression.
type CityPredicate struct {
	program cel.Program
}

// CompileExpression compiles a CEL city filter.
func CompileExpression(expr string) (*CityPredicate, error) {
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("population", cel.IntType),
		cel.Variable("tier", cel.StringType),
		cel.Variable("cluster", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create filter environment")
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile filter %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("filter %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "program filter %q", expr)
	}
	return &CityPredicate{program: program}, nil
}

// Match evaluates the predicate against a city.
func (p *CityPredicate) Match(c City) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{
		"name":       c.Name,
		"population": int64(c.Population),
		"tier":       string(c.SizeTier),
		"cluster":    int64(c.ClusterID),
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate filter on %s", c.Name)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("filter returned %T", out.Value())
	}
	return matched, nil
}

// ApplyFilter filters the graph based on criteria. Roads survive only when
// both endpoints do. Cities are returned by descending population.
func ApplyFilter(graph *Graph, filter GraphFilter) (*Graph, error) {
	if graph == nil {
		return nil, nil
	}

	var predicate *CityPredicate
	if strings.TrimSpace(filter.Expression) != "" {
		p, err := CompileExpression(filter.Expression)
		if err != nil {
			return nil, err
		}
		predicate = p
	}

	citySet := make(map[string]bool)
	filteredCities := []City{}
	for _, city := range graph.Cities {
		// Name filter
		if len(filter.Names) > 0 && !slices.ContainsFunc(filter.Names, func(n string) bool {
			return strings.EqualFold(n, city.Name)
		}) {
			continue
		}

		if city.Population < filter.MinPopulation {
			continue
		}

		if len(filter.Tiers) > 0 && !slices.Contains(filter.Tiers, city.SizeTier) {
			continue
		}

		if len(filter.Clusters) > 0 && !slices.Contains(filter.Clusters, city.ClusterID) {
			continue
		}

		if predicate != nil {
			ok, err := predicate.Match(city)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		filteredCities = append(filteredCities, city)
		citySet[city.ID] = true
	}

	filteredRoads := []Road{}
	for _, road := range graph.Roads {
		if citySet[road.CityA] && citySet[road.CityB] {
			filteredRoads = append(filteredRoads, road)
		}
	}

	sort.SliceStable(filteredCities, func(i, j int) bool {
		return filteredCities[i].Population > filteredCities[j].Population
	})

	return &Graph{
		Cities: filteredCities,
		Roads:  filteredRoads,
		Stats: GraphStats{
			CityCount: len(filteredCities),
			RoadCount: len(filteredRoads),
		},
	}, nil
}
