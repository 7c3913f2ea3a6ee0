package geography

import (
	"sort"

	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

// Strategy names the fallback level that produced a resolution.  The
// arbitrary level is a known accuracy compromise and is surfaced in the
// run report, so callers need to know which level fired.
type Strategy string

const (
	// StrategyExact matched a template located in the country itself.
	StrategyExact Strategy = "exact"
	// StrategyMappedRegion matched one of the country's ranked regions.
	StrategyMappedRegion Strategy = "mapped_region"
	// StrategyGlobal matched a Rest-of-World or global template.
	StrategyGlobal Strategy = "global"
	// StrategyArbitrary fell through to the lexicographically first
	// available template location.
	StrategyArbitrary Strategy = "arbitrary"
)

// globalTags are the location tags treated as worldwide stand-ins, in
// preference order.
var globalTags = []string{"RoW", "GLO", "World"}

// Resolution is the outcome of a template search for one country.
type Resolution struct {
	Location string
	Strategy Strategy
}

// Resolver finds the best template location for a country among the
// locations actually present in a template set.  The search is a fixed
// ordered strategy chain; each level either matches or defers to the next.
type Resolver struct {
	mapping Mapper
}

// NewResolver builds a Resolver over the given mapping.
func NewResolver(mapping Mapper) *Resolver {
	return &Resolver{mapping: mapping}
}

// Resolve picks a location from available for the given country.  The
// available set must list the locations present in the template set; an
// empty set means no template exists at all and yields a structural error.
func (r *Resolver) Resolve(country string, available []string) (Resolution, error) {
	if len(available) == 0 {
		return Resolution{}, appErrors.Newf(appErrors.CodeNoTemplate,
			"no template locations available for country %s", country)
	}

	have := make(map[string]bool, len(available))
	for _, loc := range available {
		have[loc] = true
	}

	if have[country] {
		return Resolution{Location: country, Strategy: StrategyExact}, nil
	}

	for _, region := range r.mapping.RegionsFor(country) {
		if have[region] {
			return Resolution{Location: region, Strategy: StrategyMappedRegion}, nil
		}
	}

	for _, tag := range globalTags {
		if have[tag] {
			return Resolution{Location: tag, Strategy: StrategyGlobal}, nil
		}
	}

	sorted := append([]string(nil), available...)
	sort.Strings(sorted)
	return Resolution{Location: sorted[0], Strategy: StrategyArbitrary}, nil
}
