// Package geography resolves a country to the template region that best
// represents it, using an externally supplied ranked mapping and a fixed
// chain of fallbacks.
package geography

import "sort"

// Mapper returns the ranked region tags acceptable as stand-ins for a
// country, most specific first.  The mapping is static input data; an
// unknown country returns an empty list.
type Mapper interface {
	RegionsFor(country string) []string
}

// StaticMapping is an in-memory Mapper backed by a plain map.  Loaded once
// per run from the mapping table.
type StaticMapping map[string][]string

// RegionsFor implements Mapper.
func (m StaticMapping) RegionsFor(country string) []string {
	return m[country]
}

// Countries returns the mapped countries sorted lexicographically.
func (m StaticMapping) Countries() []string {
	out := make([]string, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
