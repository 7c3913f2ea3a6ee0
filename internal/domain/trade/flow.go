// Package trade turns raw multi-year bilateral trade statistics into the
// per-country production and consumption volumes that drive country
// selection and market mixing.
package trade

import "context"

// RawFlow is one bilateral trade record for one year, as delivered by the
// trade data source.  Value is the traded quantity in the source's unit;
// the unit is uniform per commodity and never inspected here.
type RawFlow struct {
	Commodity string
	Exporter  string
	Importer  string
	Year      int
	Value     float64
}

// Flow is one aggregated bilateral flow, the multi-year mean over the
// aggregation window.
type Flow struct {
	Commodity string
	Exporter  string
	Importer  string
	Value     float64
}

// Source delivers raw trade records in bulk.  Implementations live under
// internal/infrastructure/database.
type Source interface {
	// FlowsForCommodity returns every raw record for the commodity across
	// all available years.
	FlowsForCommodity(ctx context.Context, commodity string) ([]RawFlow, error)

	// Commodities returns the distinct commodity codes present in the
	// trade table, sorted lexicographically.
	Commodities(ctx context.Context) ([]string, error)
}

// RatioTable resolves the production/export ratio of a commodity from an
// external sectoral input-output table.
type RatioTable interface {
	// Ratio returns the export ratio in [0, 1] and whether the commodity
	// is covered by the table at all.
	Ratio(ctx context.Context, commodity string) (float64, bool, error)
}
