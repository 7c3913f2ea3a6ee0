package regionalization

import (
	"math"
	"sort"

	"github.com/turtacn/regioflow/internal/domain/inventory"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

// TechnologyShare is one production technology's share of the global
// market for a commodity.
type TechnologyShare struct {
	Technology string
	Share      float64
}

// Allocation is one technology's slice of a country's production volume.
type Allocation struct {
	Technology string
	Volume     float64
}

// Allocator splits a country's aggregate production volume across the
// competing technologies that produce the same reference product.
type Allocator struct {
	tolerance float64
	log       logging.Logger
}

// NewAllocator builds an Allocator with the given share-sum tolerance.
func NewAllocator(tolerance float64, log logging.Logger) *Allocator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Allocator{tolerance: tolerance, log: log.Named("allocator")}
}

// GlobalShares derives technology shares from the worldwide market for the
// product: each supplier exchange's amount, mapped to the supplier's
// technology, weighted against the total.  The global market is picked
// from marketTemplates by location preference (GLO, World, then RoW); when
// none exists or its suppliers cannot be attributed, every technology gets
// the uniform 1/n prior instead.
func (a *Allocator) GlobalShares(
	product string,
	technologies []string,
	marketTemplates []*inventory.ProcessNode,
	supplierTechnology func(ref inventory.FlowRef) (string, bool),
) []TechnologyShare {
	sort.Strings(technologies)

	market := pickGlobalMarket(marketTemplates)
	if market != nil {
		byTech := make(map[string]float64, len(technologies))
		var total float64
		for _, i := range market.TechnosphereInputs() {
			ex := market.Exchanges[i]
			if ex.Supplier.Product != product || ex.Amount <= 0 {
				continue
			}
			tech, ok := supplierTechnology(ex.Supplier)
			if !ok {
				continue
			}
			byTech[tech] += ex.Amount
			total += ex.Amount
		}
		if total > 0 {
			out := make([]TechnologyShare, 0, len(technologies))
			for _, t := range technologies {
				out = append(out, TechnologyShare{Technology: t, Share: byTech[t] / total})
			}
			return out
		}
	}

	a.log.Debug("no usable global market, using uniform technology prior",
		logging.String("product", product),
		logging.Int("technologies", len(technologies)))
	uniform := 1.0 / float64(len(technologies))
	out := make([]TechnologyShare, 0, len(technologies))
	for _, t := range technologies {
		out = append(out, TechnologyShare{Technology: t, Share: uniform})
	}
	return out
}

// Allocate splits volume across the given shares.  Zero-share technologies
// are skipped entirely.  The last positive-share allocation is set to the
// exact remainder so the allocated volumes sum to the input volume without
// floating-point drift.
func (a *Allocator) Allocate(volume float64, shares []TechnologyShare) ([]Allocation, error) {
	if volume < 0 {
		return nil, appErrors.Newf(appErrors.CodeNegativeVolume,
			"cannot allocate negative volume %v", volume)
	}

	var shareSum float64
	for _, s := range shares {
		if s.Share < 0 {
			return nil, appErrors.Newf(appErrors.CodeShareInvariant,
				"negative technology share %v for %s", s.Share, s.Technology)
		}
		shareSum += s.Share
	}
	if math.Abs(shareSum-1) > a.tolerance {
		return nil, appErrors.Newf(appErrors.CodeShareInvariant,
			"technology shares sum to 1%+e", shareSum-1)
	}

	lastPositive := -1
	for i, s := range shares {
		if s.Share > 0 {
			lastPositive = i
		}
	}

	var out []Allocation
	var assigned float64
	for i, s := range shares {
		if s.Share == 0 {
			continue
		}
		var v float64
		if i == lastPositive {
			v = volume - assigned
		} else {
			v = volume * s.Share
			assigned += v
		}
		out = append(out, Allocation{Technology: s.Technology, Volume: v})
	}
	return out, nil
}
