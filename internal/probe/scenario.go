package probe

import (
	"fmt"
	"slices"
	"sort"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
)

// Case is one parameter set run repeatedly.
type Case struct {
	Name   string
	Params domain.QueryParameters
}

// Scenario groups cases with how many times each is run.
type Scenario struct {
	Name        string
	Description string
	Cases       []Case
	Runs        int
	// Detailed also compares per-detection fields between runs.
	Detailed bool
}

// BayArea is the small San Francisco Bay query used by most scenarios.
func BayArea() domain.QueryParameters {
	return domain.QueryParameters{
		Bounds:        []float64{-122.5, 37.5, -122.0, 38.0},
		StartDate:     "2024-08-01",
		EndDate:       "2024-08-07",
		Satellite:     domain.SatelliteSentinel2,
		MaxCloudCover: 40,
	}
}

// California covers the whole state.
func California() domain.QueryParameters {
	return domain.QueryParameters{
		Bounds:        []float64{-124.5, 32.5, -114.0, 42.0},
		StartDate:     "2024-08-01",
		EndDate:       "2024-08-07",
		Satellite:     domain.SatelliteSentinel2,
		MaxCloudCover: 40,
	}
}

// SoutheastAustralia is a landsat query in the southern hemisphere.
func SoutheastAustralia() domain.QueryParameters {
	return domain.QueryParameters{
		Bounds:        []float64{145.0, -37.5, 150.0, -33.0},
		StartDate:     "2024-08-01",
		EndDate:       "2024-08-07",
		Satellite:     domain.SatelliteLandsat,
		MaxCloudCover: 30,
	}
}

var scenarios = map[string]Scenario{
	"simple": {
		Name:        "simple",
		Description: "Bay Area query run three times",
		Cases:       []Case{{Name: "Bay Area", Params: BayArea()}},
		Runs:        3,
	},
	"california": {
		Name:        "california",
		Description: "statewide California query run five times",
		Cases:       []Case{{Name: "California", Params: California()}},
		Runs:        5,
	},
	"different-params": {
		Name:        "different-params",
		Description: "three unrelated queries run twice each",
		Cases: []Case{
			{Name: "California Small Area", Params: BayArea()},
			{Name: "California Large Area", Params: California()},
			{Name: "Australia Area", Params: SoutheastAustralia()},
		},
		Runs: 2,
	},
	"detailed": {
		Name:        "detailed",
		Description: "Bay Area query run three times with per-detection comparison",
		Cases:       []Case{{Name: "Bay Area", Params: BayArea()}},
		Runs:        3,
		Detailed:    true,
	},
}

// LookupScenario returns the named scenario.
func LookupScenario(name string) (Scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q (known: %v)", name, ScenarioNames())
	}
	s.Cases = slices.Clone(s.Cases)
	return s, nil
}

// ScenarioNames lists the built-in scenarios in sorted order.
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
