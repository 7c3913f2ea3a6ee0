package regionalization

import (
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/turtacn/regioflow/internal/domain/inventory"
	"github.com/turtacn/regioflow/internal/domain/selection"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

// marketNamespace seeds the deterministic ids of market nodes.
var marketNamespace = uuid.MustParse("b7a9c4f1-5e2d-4f60-9a38-0d61c2e7aa54")

// transportProductMarker tags the supplier products carried over from the
// template markets' transport mix.
const transportProductMarker = "transport"

// TransportMix extracts the transport-mode exchanges of the template
// markets and averages them.  A mode missing from some markets counts as
// zero there.  Amounts are copied and averaged, never re-derived from
// trade geography.
func TransportMix(markets []*inventory.ProcessNode) []inventory.Exchange {
	if len(markets) == 0 {
		return nil
	}

	byKey := make(map[string]inventory.Exchange)
	keys := make([]string, 0)
	for _, m := range markets {
		for _, i := range m.TechnosphereInputs() {
			ex := m.Exchanges[i]
			if !strings.Contains(strings.ToLower(ex.Supplier.Product), transportProductMarker) {
				continue
			}
			key := ex.Supplier.Key().String() + "\x00" + ex.Unit
			agg, seen := byKey[key]
			if !seen {
				keys = append(keys, key)
				agg = ex
				agg.Amount = 0
			}
			agg.Amount += ex.Amount
			byKey[key] = agg
		}
	}

	sort.Strings(keys)
	out := make([]inventory.Exchange, 0, len(keys))
	for _, key := range keys {
		ex := byKey[key]
		ex.Amount /= float64(len(markets))
		out = append(out, ex)
	}
	return out
}

// Producer is one regionalized production node together with the volume it
// was allocated, used to weight market supplier exchanges.
type Producer struct {
	Node   *inventory.ProcessNode
	Volume float64
}

// Assembler builds the market nodes of a commodity: one export market plus
// national consumption markets and the RoW consumption market.
type Assembler struct {
	arena     *inventory.Arena
	tolerance float64
	log       logging.Logger
}

// NewAssembler builds an Assembler.
func NewAssembler(arena *inventory.Arena, tolerance float64, log logging.Logger) *Assembler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Assembler{arena: arena, tolerance: tolerance, log: log.Named("assembler")}
}

// pickGlobalMarket returns the template market that best represents the
// worldwide supply mix: GLO first, then World, then RoW, ties broken by
// name.  Nil when no such market exists.
func pickGlobalMarket(markets []*inventory.ProcessNode) *inventory.ProcessNode {
	for _, loc := range []string{"GLO", "World", "RoW"} {
		var chosen *inventory.ProcessNode
		for _, m := range markets {
			if m.Location != loc {
				continue
			}
			if chosen == nil || m.Name < chosen.Name {
				chosen = m
			}
		}
		if chosen != nil {
			return chosen
		}
	}
	return nil
}

// BuildExportMarket assembles the global export market of a commodity.
// Supplier shares follow the production selection; every selected country
// contributes its producers weighted by their allocated volumes, and the
// RoW share points at the aggregated RoW production node.  transport is
// the pre-averaged template transport mix, appended unchanged.
func (a *Assembler) BuildExportMarket(
	commodity Commodity,
	prodSel *selection.Result,
	producers map[string][]Producer,
	rowProducer *inventory.ProcessNode,
	transport []inventory.Exchange,
	unit string,
) (*inventory.ProcessNode, error) {
	if prodSel.Unregionalizable() {
		return nil, appErrors.Newf(appErrors.CodeInvalidParam,
			"cannot build export market for unregionalizable commodity %s", commodity.Code)
	}

	node := &inventory.ProcessNode{
		ID:       marketID(commodity.Product, "export", "GLO"),
		Type:     inventory.TypeMarket,
		Name:     "export market for " + commodity.Product,
		Product:  commodity.Product,
		Location: "GLO",
		Unit:     unit,
		Exchanges: []inventory.Exchange{
			{Kind: inventory.KindProduction, Amount: 1, Unit: unit},
		},
	}

	var shareSum float64
	for _, entry := range prodSel.Entries {
		list := producers[entry.Country]
		if len(list) == 0 {
			return nil, appErrors.Newf(appErrors.CodeNoTemplate,
				"selected producer %s has no production nodes for %s", entry.Country, commodity.Code)
		}
		var countryTotal float64
		for _, p := range list {
			countryTotal += p.Volume
		}
		for _, p := range list {
			amount := entry.Share
			if countryTotal > 0 {
				amount = entry.Share * (p.Volume / countryTotal)
			} else {
				amount = entry.Share / float64(len(list))
			}
			if amount == 0 {
				continue
			}
			node.Exchanges = append(node.Exchanges, supplierExchange(p.Node, amount, unit))
			shareSum += amount
		}
	}

	if prodSel.RoW != nil && prodSel.RoW.Share > 0 {
		if rowProducer == nil {
			return nil, appErrors.Newf(appErrors.CodeNoTemplate,
				"RoW share %v for %s but no RoW production node", prodSel.RoW.Share, commodity.Code)
		}
		node.Exchanges = append(node.Exchanges, supplierExchange(rowProducer, prodSel.RoW.Share, unit))
		shareSum += prodSel.RoW.Share
	}

	mergeDuplicateSuppliers(node)

	if math.Abs(shareSum-1) > a.tolerance {
		return nil, appErrors.Newf(appErrors.CodeShareInvariant,
			"export market shares for %s sum to 1%+e", commodity.Code, shareSum-1)
	}

	node.Exchanges = append(node.Exchanges, transport...)

	if err := a.arena.Add(node); err != nil {
		return nil, err
	}
	return node, nil
}

// BuildConsumptionMarket assembles the national consumption market of one
// consuming country: the country's own producers weighted by the domestic
// share, and the export market for the imported remainder.  A country with
// no own production buys everything from the export market.
func (a *Assembler) BuildConsumptionMarket(
	commodity Commodity,
	country string,
	domesticShare float64,
	ownProducers []Producer,
	exportMarket *inventory.ProcessNode,
	transport []inventory.Exchange,
	unit string,
) (*inventory.ProcessNode, error) {
	if domesticShare < 0 || domesticShare > 1 {
		return nil, appErrors.Newf(appErrors.CodeShareInvariant,
			"domestic share %v out of [0, 1] for %s/%s", domesticShare, commodity.Code, country)
	}
	if len(ownProducers) == 0 {
		domesticShare = 0
	}

	node := &inventory.ProcessNode{
		ID:       marketID(commodity.Product, "consumption", country),
		Type:     inventory.TypeMarket,
		Name:     "consumption market for " + commodity.Product,
		Product:  commodity.Product,
		Location: country,
		Unit:     unit,
		Exchanges: []inventory.Exchange{
			{Kind: inventory.KindProduction, Amount: 1, Unit: unit},
		},
	}

	var shareSum float64
	if domesticShare > 0 {
		var total float64
		for _, p := range ownProducers {
			total += p.Volume
		}
		for _, p := range ownProducers {
			amount := domesticShare / float64(len(ownProducers))
			if total > 0 {
				amount = domesticShare * (p.Volume / total)
			}
			if amount == 0 {
				continue
			}
			node.Exchanges = append(node.Exchanges, supplierExchange(p.Node, amount, unit))
			shareSum += amount
		}
	}

	if imported := 1 - domesticShare; imported > 0 {
		if exportMarket == nil {
			return nil, appErrors.Newf(appErrors.CodeNoTemplate,
				"import share %v for %s/%s but no export market", imported, commodity.Code, country)
		}
		node.Exchanges = append(node.Exchanges, supplierExchange(exportMarket, imported, unit))
		shareSum += imported
	}

	mergeDuplicateSuppliers(node)

	if math.Abs(shareSum-1) > a.tolerance {
		return nil, appErrors.Newf(appErrors.CodeShareInvariant,
			"consumption market shares for %s/%s sum to 1%+e", commodity.Code, country, shareSum-1)
	}

	node.Exchanges = append(node.Exchanges, transport...)

	if err := a.arena.Add(node); err != nil {
		return nil, err
	}
	return node, nil
}

// mergeDuplicateSuppliers collapses technosphere exchanges targeting the
// same node into one with the summed amount.  The RoW aggregation path can
// legitimately reference one supplier twice.
func mergeDuplicateSuppliers(node *inventory.ProcessNode) {
	seen := make(map[uuid.UUID]int)
	merged := node.Exchanges[:0]
	for _, ex := range node.Exchanges {
		if ex.Kind != inventory.KindTechnosphere || ex.Supplier.NodeID == uuid.Nil {
			merged = append(merged, ex)
			continue
		}
		if at, dup := seen[ex.Supplier.NodeID]; dup {
			merged[at].Amount += ex.Amount
			continue
		}
		seen[ex.Supplier.NodeID] = len(merged)
		merged = append(merged, ex)
	}
	node.Exchanges = merged
}

func supplierExchange(supplier *inventory.ProcessNode, amount float64, unit string) inventory.Exchange {
	return inventory.Exchange{
		Kind:   inventory.KindTechnosphere,
		Amount: amount,
		Unit:   unit,
		Supplier: inventory.FlowRef{
			Name:     supplier.Name,
			Product:  supplier.Product,
			Location: supplier.Location,
			NodeID:   supplier.ID,
		},
	}
}

func marketID(product, family, location string) uuid.UUID {
	seed := strings.Join([]string{product, family, location}, "\x00")
	return uuid.NewSHA1(marketNamespace, []byte(seed))
}
