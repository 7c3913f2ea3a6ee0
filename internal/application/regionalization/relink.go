package regionalization

import (
	"github.com/turtacn/regioflow/internal/domain/inventory"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
)

// Relinker performs the second-order pass: once national consumption
// markets exist, production nodes that had fallen back to a worldwide
// supplier are revisited and retargeted at the consumption market of the
// same product in their own country.  Amounts are never changed, only
// targets.
type Relinker struct {
	arena *inventory.Arena
	log   logging.Logger
}

// NewRelinker builds a Relinker over the run's arena.
func NewRelinker(arena *inventory.Arena, log logging.Logger) *Relinker {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Relinker{arena: arena, log: log.Named("relinker")}
}

// worldwide are the supplier locations eligible for second-order
// replacement.
var worldwide = map[string]bool{"RoW": true, "GLO": true, "World": true}

// Relink rewires eligible exchanges of every created process node.
// markets maps product, then country, to the national consumption market
// built for that pair.  Returns the number of exchanges retargeted.
func (r *Relinker) Relink(markets map[string]map[string]*inventory.ProcessNode) int {
	var relinked int
	for _, node := range r.arena.Created() {
		if node.Type != inventory.TypeProcess {
			continue
		}
		for _, i := range node.TechnosphereInputs() {
			ex := &node.Exchanges[i]
			if !worldwide[ex.Supplier.Location] {
				continue
			}
			byCountry, ok := markets[ex.Supplier.Product]
			if !ok {
				continue
			}
			market, ok := byCountry[node.Location]
			if !ok {
				// Countries outside the consumption selection buy from
				// the aggregated RoW consumption market.
				market, ok = byCountry[RoWCountry]
			}
			if !ok {
				continue
			}
			if market.ID == node.ID {
				continue
			}
			ex.Supplier = inventory.FlowRef{
				Name:     market.Name,
				Product:  market.Product,
				Location: market.Location,
				NodeID:   market.ID,
			}
			relinked++
		}
	}
	if relinked > 0 {
		r.log.Info("second-order relinking complete",
			logging.Int("exchanges", relinked))
	}
	return relinked
}
