package trade

import (
	"sort"

	appErrors "github.com/turtacn/regioflow/pkg/errors"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
)

// Aggregator collapses multi-year raw records into one representative flow
// per (exporter, importer) pair.  The representative value is the
// arithmetic mean over the trailing window of most recent available years;
// commodities on the single-year list use only the latest year, because
// their classification code did not exist before it.
type Aggregator struct {
	windowYears int
	singleYear  map[string]bool
	log         logging.Logger
}

// NewAggregator builds an Aggregator.  windowYears must be at least 1;
// singleYearCommodities lists codes restricted to their latest year.
func NewAggregator(windowYears int, singleYearCommodities []string, log logging.Logger) *Aggregator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	single := make(map[string]bool, len(singleYearCommodities))
	for _, c := range singleYearCommodities {
		single[c] = true
	}
	return &Aggregator{
		windowYears: windowYears,
		singleYear:  single,
		log:         log.Named("aggregator"),
	}
}

type pairKey struct {
	exporter string
	importer string
}

// Aggregate reduces the raw records of one commodity to mean flows.
// Records with negative values are dropped and logged as data gaps.
// A pair missing a year inside the window contributes zero for that year,
// so the divisor is always the window length, not the record count.
func (a *Aggregator) Aggregate(commodity string, raw []RawFlow) ([]Flow, error) {
	if len(raw) == 0 {
		return nil, appErrors.Newf(appErrors.CodeEmptyTradeTable,
			"no trade records for commodity %s", commodity)
	}

	yearSet := make(map[int]bool)
	clean := raw[:0:0]
	for _, r := range raw {
		if r.Commodity != commodity {
			return nil, appErrors.Newf(appErrors.CodeUnknownCommodity,
				"record for commodity %s in batch for %s", r.Commodity, commodity)
		}
		if r.Value < 0 {
			a.log.Warn("dropping negative trade flow",
				logging.String("commodity", commodity),
				logging.String("exporter", r.Exporter),
				logging.String("importer", r.Importer),
				logging.Int("year", r.Year),
				logging.Float64("value", r.Value))
			continue
		}
		yearSet[r.Year] = true
		clean = append(clean, r)
	}
	if len(clean) == 0 {
		return nil, appErrors.Newf(appErrors.CodeEmptyTradeTable,
			"all records for commodity %s were negative", commodity)
	}

	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	window := a.windowYears
	if a.singleYear[commodity] {
		window = 1
	}
	if window > len(years) {
		window = len(years)
	}
	inWindow := make(map[int]bool, window)
	for _, y := range years[:window] {
		inWindow[y] = true
	}

	sums := make(map[pairKey]float64)
	for _, r := range clean {
		if !inWindow[r.Year] {
			continue
		}
		sums[pairKey{r.Exporter, r.Importer}] += r.Value
	}

	out := make([]Flow, 0, len(sums))
	for k, sum := range sums {
		out = append(out, Flow{
			Commodity: commodity,
			Exporter:  k.exporter,
			Importer:  k.importer,
			Value:     sum / float64(window),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exporter != out[j].Exporter {
			return out[i].Exporter < out[j].Exporter
		}
		return out[i].Importer < out[j].Importer
	})
	return out, nil
}
