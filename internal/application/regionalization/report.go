package regionalization

import (
	"sort"
	"sync"
	"time"

	"github.com/turtacn/regioflow/internal/domain/geography"
)

// CommoditySkip records one commodity excluded from regionalization and
// why.  Skips are expected output, not failures.
type CommoditySkip struct {
	Commodity string
	Reason    string
}

// DataGap records one recoverable default applied during a run.
type DataGap struct {
	Commodity string
	Detail    string
}

// ArbitraryGeography records a template resolution that fell through to
// the arbitrary last-resort strategy, a known accuracy compromise that
// users need to see.
type ArbitraryGeography struct {
	Commodity string
	Country   string
	Product   string
	Location  string
}

// Report is the structured summary of one regionalization run.  The run
// never silently drops a commodity; everything skipped or defaulted shows
// up here.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	Commodities  int
	Regionalized int

	ProcessNodes      int
	MarketNodes       int
	RelinkedExchanges int
	SpatializedFlows  int

	Skipped              []CommoditySkip
	DataGaps             []DataGap
	ArbitraryGeographies []ArbitraryGeography
}

// Reporter accumulates report entries from concurrent per-commodity
// workers.
type Reporter struct {
	mu     sync.Mutex
	report Report
}

// NewReporter starts a report for the given run.
func NewReporter(runID string) *Reporter {
	return &Reporter{report: Report{RunID: runID, Started: time.Now()}}
}

// Skip records a skipped commodity.
func (r *Reporter) Skip(commodity, reason string) {
	r.mu.Lock()
	r.report.Skipped = append(r.report.Skipped, CommoditySkip{Commodity: commodity, Reason: reason})
	r.mu.Unlock()
}

// Gap records a recoverable data gap.
func (r *Reporter) Gap(commodity, detail string) {
	r.mu.Lock()
	r.report.DataGaps = append(r.report.DataGaps, DataGap{Commodity: commodity, Detail: detail})
	r.mu.Unlock()
}

// Arbitrary records a last-resort geography resolution.  Calls with any
// other strategy are ignored so callers can report unconditionally.
func (r *Reporter) Arbitrary(strategy geography.Strategy, commodity, country, product, location string) {
	if strategy != geography.StrategyArbitrary {
		return
	}
	r.mu.Lock()
	r.report.ArbitraryGeographies = append(r.report.ArbitraryGeographies, ArbitraryGeography{
		Commodity: commodity,
		Country:   country,
		Product:   product,
		Location:  location,
	})
	r.mu.Unlock()
}

// Regionalized counts one successfully regionalized commodity.
func (r *Reporter) Regionalized() {
	r.mu.Lock()
	r.report.Regionalized++
	r.mu.Unlock()
}

// Finalize stamps the totals and returns the finished report.  Entry
// slices are sorted so the report is reproducible regardless of worker
// scheduling.
func (r *Reporter) Finalize(commodities, processNodes, marketNodes, relinked, spatialized int) Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.report.Finished = time.Now()
	r.report.Commodities = commodities
	r.report.ProcessNodes = processNodes
	r.report.MarketNodes = marketNodes
	r.report.RelinkedExchanges = relinked
	r.report.SpatializedFlows = spatialized

	sort.Slice(r.report.Skipped, func(i, j int) bool {
		return r.report.Skipped[i].Commodity < r.report.Skipped[j].Commodity
	})
	sort.Slice(r.report.DataGaps, func(i, j int) bool {
		a, b := r.report.DataGaps[i], r.report.DataGaps[j]
		if a.Commodity != b.Commodity {
			return a.Commodity < b.Commodity
		}
		return a.Detail < b.Detail
	})
	sort.Slice(r.report.ArbitraryGeographies, func(i, j int) bool {
		a, b := r.report.ArbitraryGeographies[i], r.report.ArbitraryGeographies[j]
		if a.Commodity != b.Commodity {
			return a.Commodity < b.Commodity
		}
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		return a.Product < b.Product
	})
	return r.report
}
