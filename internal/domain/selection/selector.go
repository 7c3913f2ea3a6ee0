// Package selection implements the cutoff-based country selection that
// decides which countries are individually represented for a commodity and
// which are folded into the Rest-of-World aggregate.
package selection

import (
	"math"
	"sort"

	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

// RoWCode is the synthetic country code of the Rest-of-World aggregate.
const RoWCode = "RoW"

// Kind distinguishes the two volume distributions a commodity is selected
// over.
type Kind string

const (
	KindProduction  Kind = "production"
	KindConsumption Kind = "consumption"
)

// Entry is one selected country with its volume and its share of the
// commodity total.
type Entry struct {
	Country string
	Volume  float64
	Share   float64
}

// Result is the outcome of selecting countries for one (commodity, kind).
// Entries are ordered by descending volume with country code as the tie
// break, so the result is reproducible across runs.
type Result struct {
	Commodity string
	Kind      Kind
	Entries   []Entry

	// RoW aggregates every non-selected country.  Nil when the selected
	// countries already cover the full total.
	RoW *Entry
}

// Unregionalizable reports whether the commodity had no volume at all, in
// which case no country-specific nodes should be built for it.
func (r *Result) Unregionalizable() bool {
	return len(r.Entries) == 0
}

// ShareSum returns the total of all shares including RoW.
func (r *Result) ShareSum() float64 {
	var sum float64
	for _, e := range r.Entries {
		sum += e.Share
	}
	if r.RoW != nil {
		sum += r.RoW.Share
	}
	return sum
}

// Share returns the share of the given country, or the RoW share for
// RoWCode.  Unknown countries return 0.
func (r *Result) Share(country string) float64 {
	if country == RoWCode {
		if r.RoW != nil {
			return r.RoW.Share
		}
		return 0
	}
	for _, e := range r.Entries {
		if e.Country == country {
			return e.Share
		}
	}
	return 0
}

// Selected reports whether the country was individually selected.
func (r *Result) Selected(country string) bool {
	for _, e := range r.Entries {
		if e.Country == country {
			return true
		}
	}
	return false
}

// Selector partitions countries by cumulative volume share against a
// cutoff.
type Selector struct {
	cutoff    float64
	tolerance float64
}

// NewSelector builds a Selector.  cutoff must lie in (0, 1]; tolerance
// bounds the accepted deviation of the share sum from 1.
func NewSelector(cutoff, tolerance float64) (*Selector, error) {
	if cutoff <= 0 || cutoff > 1 {
		return nil, appErrors.Newf(appErrors.CodeInvalidCutoff,
			"cutoff must be in (0, 1], got %v", cutoff)
	}
	if tolerance <= 0 {
		return nil, appErrors.Newf(appErrors.CodeInvalidParam,
			"tolerance must be positive, got %v", tolerance)
	}
	return &Selector{cutoff: cutoff, tolerance: tolerance}, nil
}

// Select partitions the given per-country volumes.  Countries are sorted
// by descending volume (code ascending on ties) and the minimal prefix
// whose cumulative fraction reaches the cutoff is selected; the remainder
// becomes the RoW aggregate.  A zero total yields an unregionalizable
// result with a zero-volume RoW entry rather than an error.
func (s *Selector) Select(commodity string, kind Kind, volumes map[string]float64) (*Result, error) {
	res := &Result{Commodity: commodity, Kind: kind}

	type cv struct {
		country string
		volume  float64
	}
	var total float64
	countries := make([]cv, 0, len(volumes))
	for c, v := range volumes {
		if v < 0 {
			return nil, appErrors.Newf(appErrors.CodeNegativeVolume,
				"negative volume %v for %s/%s", v, commodity, c)
		}
		if v > 0 {
			countries = append(countries, cv{c, v})
		}
		total += v
	}

	if total == 0 {
		res.RoW = &Entry{Country: RoWCode}
		return res, nil
	}

	sort.Slice(countries, func(i, j int) bool {
		if countries[i].volume != countries[j].volume {
			return countries[i].volume > countries[j].volume
		}
		return countries[i].country < countries[j].country
	})

	var cumulative float64
	for _, c := range countries {
		cumulative += c.volume
		res.Entries = append(res.Entries, Entry{
			Country: c.country,
			Volume:  c.volume,
			Share:   c.volume / total,
		})
		if cumulative/total >= s.cutoff {
			break
		}
	}

	// total and cumulative accumulate in different orders; a residue
	// within tolerance is rounding noise, not a RoW bucket.
	if rest := total - cumulative; rest > s.tolerance*total {
		res.RoW = &Entry{Country: RoWCode, Volume: rest, Share: rest / total}
	}

	if diff := math.Abs(res.ShareSum() - 1); diff > s.tolerance {
		return nil, appErrors.Newf(appErrors.CodeShareInvariant,
			"shares for %s/%s sum to 1%+e", commodity, kind, res.ShareSum()-1)
	}
	return res, nil
}
