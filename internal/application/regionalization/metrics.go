package regionalization

import "time"

// Metrics is the observation seam of the pipeline.  The Prometheus
// implementation lives under internal/infrastructure/monitoring; tests and
// library callers use NopMetrics.
type Metrics interface {
	// CommodityProcessed counts one finished commodity with its outcome:
	// "regionalized", "skipped" or "failed".
	CommodityProcessed(outcome string)

	// CommodityDuration observes the wall time spent on one commodity.
	CommodityDuration(d time.Duration)

	// NodesCreated counts nodes added to the arena, by node type.
	NodesCreated(nodeType string, n int)

	// ExchangesRelinked counts second-order retargeted exchanges.
	ExchangesRelinked(n int)

	// DataGap counts one recoverable default.
	DataGap()
}

type nopMetrics struct{}

func (nopMetrics) CommodityProcessed(string)       {}
func (nopMetrics) CommodityDuration(time.Duration) {}
func (nopMetrics) NodesCreated(string, int)        {}
func (nopMetrics) ExchangesRelinked(int)           {}
func (nopMetrics) DataGap()                        {}

// NopMetrics returns a Metrics implementation that discards everything.
func NopMetrics() Metrics { return nopMetrics{} }
