package trade

import (
	"context"
	"sort"

	appErrors "github.com/turtacn/regioflow/pkg/errors"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
)

// Estimate holds the per-country volumes derived for one commodity, plus
// the re-export-corrected bilateral flows used later for consumption
// market mixing.
type Estimate struct {
	Commodity string

	// Production maps country to its estimated production volume.
	// Countries with non-positive net export carry zero.
	Production map[string]float64

	// Consumption maps country to its estimated domestic consumption.
	Consumption map[string]float64

	// Flows are the bilateral flows after re-export correction: flows
	// whose exporter of record is a non-producer have been redistributed
	// to the top producing countries.
	Flows []Flow

	// DataGaps lists the recoverable defaults applied during estimation,
	// for the run report.
	DataGaps []string
}

// Estimator derives national production and consumption volumes from
// aggregated trade flows and the sectoral export ratio table.
type Estimator struct {
	ratios       RatioTable
	clampMin     float64
	clampMax     float64
	topProducers int
	log          logging.Logger
}

// NewEstimator builds an Estimator.  clampMin and clampMax bound the
// export ratio before division; topProducers caps the redistribution
// target set during re-export correction.
func NewEstimator(ratios RatioTable, clampMin, clampMax float64, topProducers int, log logging.Logger) *Estimator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Estimator{
		ratios:       ratios,
		clampMin:     clampMin,
		clampMax:     clampMax,
		topProducers: topProducers,
		log:          log.Named("estimator"),
	}
}

// Estimate computes the volume estimates for one commodity from its
// aggregated flows.  A missing or unusable export ratio zeroes all
// production estimates for the commodity and is recorded as a data gap,
// never as a failure.
func (e *Estimator) Estimate(ctx context.Context, commodity string, flows []Flow) (*Estimate, error) {
	est := &Estimate{
		Commodity:   commodity,
		Production:  make(map[string]float64),
		Consumption: make(map[string]float64),
	}

	exportTotal := make(map[string]float64)
	importTotal := make(map[string]float64)
	for _, f := range flows {
		exportTotal[f.Exporter] += f.Value
		importTotal[f.Importer] += f.Value
	}

	ratio, haveRatio, err := e.ratios.Ratio(ctx, commodity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeMissingRatio,
			"ratio lookup failed for "+commodity)
	}
	if !haveRatio {
		est.DataGaps = append(est.DataGaps, "missing export ratio, production zeroed")
		e.log.Warn("missing export ratio",
			logging.String("commodity", commodity))
	} else {
		if ratio < e.clampMin {
			ratio = e.clampMin
		}
		if ratio > e.clampMax {
			ratio = e.clampMax
		}
	}

	countries := make(map[string]bool, len(exportTotal)+len(importTotal))
	for c := range exportTotal {
		countries[c] = true
	}
	for c := range importTotal {
		countries[c] = true
	}

	for c := range countries {
		netExport := exportTotal[c] - importTotal[c]

		var production float64
		if haveRatio && netExport > 0 {
			production = netExport / ratio
		}
		consumption := production - netExport
		if consumption < 0 {
			consumption = 0
		}
		if production < 0 {
			return nil, appErrors.Newf(appErrors.CodeNegativeVolume,
				"negative production %v for %s/%s", production, commodity, c)
		}

		est.Production[c] = production
		est.Consumption[c] = consumption
	}

	est.Flows = e.correctReExports(commodity, flows, est)
	return est, nil
}

// correctReExports redistributes flows whose exporter of record has no
// recognized production onto the top producing countries, in proportion to
// their production volumes.  Flows from actual producers pass through
// untouched.
func (e *Estimator) correctReExports(commodity string, flows []Flow, est *Estimate) []Flow {
	top := e.topProducerShares(est.Production)
	if len(top) == 0 {
		// Nothing to redistribute onto; keep flows as delivered.
		if hasNonProducerExports(flows, est.Production) {
			est.DataGaps = append(est.DataGaps,
				"re-export flows kept verbatim, no producers to redistribute onto")
		}
		return sortFlows(append([]Flow(nil), flows...))
	}

	merged := make(map[pairKey]float64)
	for _, f := range flows {
		if f.Value == 0 {
			continue
		}
		if est.Production[f.Exporter] > 0 {
			merged[pairKey{f.Exporter, f.Importer}] += f.Value
			continue
		}
		for _, p := range top {
			merged[pairKey{p.country, f.Importer}] += f.Value * p.share
		}
	}

	out := make([]Flow, 0, len(merged))
	for k, v := range merged {
		out = append(out, Flow{Commodity: commodity, Exporter: k.exporter, Importer: k.importer, Value: v})
	}
	return sortFlows(out)
}

type producerShare struct {
	country string
	share   float64
}

// topProducerShares returns the top producing countries (at most
// e.topProducers of them) with their shares of the group's combined
// production.  Ties sort by country code so the result is deterministic.
func (e *Estimator) topProducerShares(production map[string]float64) []producerShare {
	type pv struct {
		country string
		volume  float64
	}
	producers := make([]pv, 0, len(production))
	for c, v := range production {
		if v > 0 {
			producers = append(producers, pv{c, v})
		}
	}
	if len(producers) == 0 {
		return nil
	}
	sort.Slice(producers, func(i, j int) bool {
		if producers[i].volume != producers[j].volume {
			return producers[i].volume > producers[j].volume
		}
		return producers[i].country < producers[j].country
	})

	n := e.topProducers
	if n > len(producers) {
		n = len(producers)
	}
	producers = producers[:n]

	var total float64
	for _, p := range producers {
		total += p.volume
	}
	out := make([]producerShare, 0, n)
	for _, p := range producers {
		out = append(out, producerShare{country: p.country, share: p.volume / total})
	}
	return out
}

func hasNonProducerExports(flows []Flow, production map[string]float64) bool {
	for _, f := range flows {
		if f.Value > 0 && production[f.Exporter] == 0 {
			return true
		}
	}
	return false
}

func sortFlows(flows []Flow) []Flow {
	sort.Slice(flows, func(i, j int) bool {
		if flows[i].Exporter != flows[j].Exporter {
			return flows[i].Exporter < flows[j].Exporter
		}
		return flows[i].Importer < flows[j].Importer
	})
	return flows
}
