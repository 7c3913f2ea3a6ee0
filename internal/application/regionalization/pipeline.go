package regionalization

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/regioflow/internal/config"
	"github.com/turtacn/regioflow/internal/domain/geography"
	"github.com/turtacn/regioflow/internal/domain/inventory"
	"github.com/turtacn/regioflow/internal/domain/selection"
	"github.com/turtacn/regioflow/internal/domain/trade"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

// RoWCountry is the pseudo-country the aggregated Rest-of-World nodes are
// located in.
const RoWCountry = selection.RoWCode

// Catalog delivers the commodities to regionalize with their reference
// products.
type Catalog interface {
	Commodities(ctx context.Context) ([]Commodity, error)
}

// SpatialCounter extends the spatializer with the number of flows minted,
// for the run report.
type SpatialCounter interface {
	inventory.Spatializer
	Count() int
}

// Pipeline wires the full regionalization pass: per-commodity estimation,
// selection, cloning and market assembly fanned out across workers, then
// second-order relinking and write-back once all first-order nodes exist.
type Pipeline struct {
	cfg config.RunConfig

	store       inventory.Store
	writer      inventory.Writer
	tradeSource trade.Source
	ratios      trade.RatioTable
	catalog     Catalog
	spatializer SpatialCounter
	mapping     geography.Mapper

	metrics Metrics
	log     logging.Logger
}

// NewPipeline assembles a Pipeline from its collaborators.  metrics may be
// nil for NopMetrics.
func NewPipeline(
	cfg config.RunConfig,
	store inventory.Store,
	writer inventory.Writer,
	tradeSource trade.Source,
	ratios trade.RatioTable,
	catalog Catalog,
	spatializer SpatialCounter,
	mapping geography.Mapper,
	metrics Metrics,
	log logging.Logger,
) (*Pipeline, error) {
	if metrics == nil {
		metrics = NopMetrics()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Pipeline{
		cfg:         cfg,
		store:       store,
		writer:      writer,
		tradeSource: tradeSource,
		ratios:      ratios,
		catalog:     catalog,
		spatializer: spatializer,
		mapping:     mapping,
		metrics:     metrics,
		log:         log.Named("pipeline"),
	}, nil
}

// commodityOutput is the fan-in payload of one commodity worker.
type commodityOutput struct {
	commodity Commodity
	// consumptionMarkets maps country to the national consumption market
	// built for this commodity's product.
	consumptionMarkets map[string]*inventory.ProcessNode
}

// Run executes one full regionalization pass.  It always returns the run
// report; the error aggregates the fatal per-commodity invariant
// violations so the caller can decide whether partial output is
// acceptable.
func (p *Pipeline) Run(ctx context.Context, runID string) (Report, error) {
	reporter := NewReporter(runID)
	arena := inventory.NewArena()
	resolver := geography.NewResolver(p.mapping)
	aggregator := trade.NewAggregator(p.cfg.TradeWindowYears, p.cfg.SingleYearCommodities, p.log)
	estimator := trade.NewEstimator(p.ratios, p.cfg.RatioClampMin, p.cfg.RatioClampMax, p.cfg.TopProducers, p.log)
	selector, err := selection.NewSelector(p.cfg.Cutoff, p.cfg.ShareTolerance)
	if err != nil {
		return reporter.Finalize(0, 0, 0, 0, 0), err
	}
	cloner := NewCloner(arena, resolver, p.spatializer, nil, nil, p.log)
	allocator := NewAllocator(p.cfg.ShareTolerance, p.log)
	assembler := NewAssembler(arena, p.cfg.ShareTolerance, p.log)

	commodities, err := p.catalog.Commodities(ctx)
	if err != nil {
		return reporter.Finalize(0, 0, 0, 0, 0), appErrors.Wrap(err, appErrors.CodeDatabaseError, "loading commodity catalog")
	}

	templatesByProduct, marketsByProduct, err := p.loadTemplates(ctx, arena, commodities)
	if err != nil {
		return reporter.Finalize(len(commodities), 0, 0, 0, 0), err
	}

	// Two catalog codes can share one reference product; their clones and
	// markets would carry identical deterministic ids.  Only the first
	// code regionalizes the product, the rest are reported.
	firstByProduct := make(map[string]string, len(commodities))
	work := make([]Commodity, 0, len(commodities))
	for _, c := range commodities {
		if first, dup := firstByProduct[c.Product]; dup {
			p.metrics.CommodityProcessed("skipped")
			reporter.Skip(c.Code, "product "+c.Product+" already regionalized via commodity "+first)
			continue
		}
		firstByProduct[c.Product] = c.Code
		work = append(work, c)
	}

	var (
		mu      sync.Mutex
		outputs []commodityOutput
		invErrs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, commodity := range work {
		commodity := commodity
		g.Go(func() error {
			started := time.Now()
			out, err := p.processCommodity(gctx, commodity, commodityDeps{
				arena:      arena,
				reporter:   reporter,
				aggregator: aggregator,
				estimator:  estimator,
				selector:   selector,
				cloner:     cloner,
				allocator:  allocator,
				assembler:  assembler,
				templates:  templatesByProduct[commodity.Product],
				markets:    marketsByProduct[commodity.Product],
			})
			p.metrics.CommodityDuration(time.Since(started))

			switch {
			case err == nil && out == nil:
				p.metrics.CommodityProcessed("skipped")
			case err == nil:
				p.metrics.CommodityProcessed("regionalized")
				mu.Lock()
				outputs = append(outputs, *out)
				mu.Unlock()
			case appErrors.IsCode(err, appErrors.CodeNoTemplate):
				// Structural: the commodity cannot be regionalized at
				// all. Reported, never fatal to the run.
				p.metrics.CommodityProcessed("skipped")
				reporter.Skip(commodity.Code, err.Error())
			case isInvariantViolation(err):
				// Fatal to this commodity only: record and continue the
				// run with partial output.
				p.metrics.CommodityProcessed("failed")
				reporter.Skip(commodity.Code, err.Error())
				mu.Lock()
				invErrs = append(invErrs, err)
				mu.Unlock()
			default:
				p.metrics.CommodityProcessed("failed")
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reporter.Finalize(len(commodities), 0, 0, 0, p.spatializer.Count()), err
	}

	// Fan-in: all first-order nodes exist, close the loop.
	marketIndex := make(map[string]map[string]*inventory.ProcessNode)
	for _, out := range outputs {
		if len(out.consumptionMarkets) == 0 {
			continue
		}
		marketIndex[out.commodity.Product] = out.consumptionMarkets
	}
	relinked := NewRelinker(arena, p.log).Relink(marketIndex)
	p.metrics.ExchangesRelinked(relinked)

	created := arena.Created()
	var processNodes, marketNodes int
	for _, n := range created {
		if n.Type == inventory.TypeMarket {
			marketNodes++
		} else {
			processNodes++
		}
	}
	p.metrics.NodesCreated(string(inventory.TypeProcess), processNodes)
	p.metrics.NodesCreated(string(inventory.TypeMarket), marketNodes)

	if err := p.writer.WriteNodes(ctx, runID, created); err != nil {
		return reporter.Finalize(len(commodities), processNodes, marketNodes, relinked, p.spatializer.Count()),
			appErrors.Wrap(err, appErrors.CodeWriteBackFailed, "persisting regionalized nodes")
	}

	report := reporter.Finalize(len(commodities), processNodes, marketNodes, relinked, p.spatializer.Count())
	p.log.Info("regionalization run complete",
		logging.String("run_id", runID),
		logging.Int("commodities", report.Commodities),
		logging.Int("regionalized", report.Regionalized),
		logging.Int("process_nodes", report.ProcessNodes),
		logging.Int("market_nodes", report.MarketNodes),
		logging.Int("relinked", report.RelinkedExchanges),
		logging.Int("skipped", len(report.Skipped)))

	return report, errors.Join(invErrs...)
}

// loadTemplates pulls every commodity's template processes and markets
// into the arena once, deduplicating products shared between commodities.
func (p *Pipeline) loadTemplates(ctx context.Context, arena *inventory.Arena, commodities []Commodity) (
	map[string][]*inventory.ProcessNode,
	map[string][]*inventory.ProcessNode,
	error,
) {
	templates := make(map[string][]*inventory.ProcessNode)
	markets := make(map[string][]*inventory.ProcessNode)

	for _, c := range commodities {
		if err := p.loadProduct(ctx, arena, c.Product, templates, markets); err != nil {
			return nil, nil, err
		}
	}

	// Input rewiring resolves among template suppliers, so the national
	// electricity, heat and waste processes the commodity templates
	// reference must enter the arena too, not just the catalog products.
	inputProducts := make(map[string]bool)
	for _, procs := range templates {
		for _, t := range procs {
			for _, i := range t.TechnosphereInputs() {
				product := t.Exchanges[i].Supplier.Product
				if matchesAny(product, defaultRegionalizableInputs) {
					inputProducts[product] = true
				}
			}
		}
	}
	ordered := make([]string, 0, len(inputProducts))
	for product := range inputProducts {
		ordered = append(ordered, product)
	}
	sort.Strings(ordered)
	for _, product := range ordered {
		if err := p.loadProduct(ctx, arena, product, templates, markets); err != nil {
			return nil, nil, err
		}
	}

	return templates, markets, nil
}

// loadProduct pulls one product's template processes and markets into the
// arena, once.
func (p *Pipeline) loadProduct(
	ctx context.Context,
	arena *inventory.Arena,
	product string,
	templates, markets map[string][]*inventory.ProcessNode,
) error {
	if _, done := templates[product]; done {
		return nil
	}

	procs, err := p.store.TemplatesForProduct(ctx, product)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDatabaseError,
			"loading templates for "+product)
	}
	for _, t := range procs {
		if err := arena.AddTemplate(t); err != nil {
			return err
		}
	}
	templates[product] = procs

	mkts, err := p.store.MarketsForProduct(ctx, product)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDatabaseError,
			"loading markets for "+product)
	}
	for _, m := range mkts {
		if err := arena.AddTemplate(m); err != nil {
			return err
		}
	}
	markets[product] = mkts
	return nil
}

// commodityDeps bundles the per-run collaborators handed to a commodity
// worker.
type commodityDeps struct {
	arena      *inventory.Arena
	reporter   *Reporter
	aggregator *trade.Aggregator
	estimator  *trade.Estimator
	selector   *selection.Selector
	cloner     *Cloner
	allocator  *Allocator
	assembler  *Assembler
	templates  []*inventory.ProcessNode
	markets    []*inventory.ProcessNode
}

// processCommodity runs the first-order stages for one commodity.  A nil
// output with nil error means the commodity was skipped and reported.
func (p *Pipeline) processCommodity(ctx context.Context, commodity Commodity, d commodityDeps) (*commodityOutput, error) {
	log := p.log.With(logging.String("commodity", commodity.Code))

	if len(d.templates) == 0 {
		d.reporter.Skip(commodity.Code, "no template process for product "+commodity.Product)
		log.Warn("skipping commodity without templates")
		return nil, nil
	}

	raw, err := p.tradeSource.FlowsForCommodity(ctx, commodity.Code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError,
			"loading trade flows for "+commodity.Code)
	}

	flows, err := d.aggregator.Aggregate(commodity.Code, raw)
	if err != nil {
		if appErrors.IsCode(err, appErrors.CodeEmptyTradeTable) {
			d.reporter.Skip(commodity.Code, "no usable trade data")
			log.Warn("skipping commodity without trade data")
			return nil, nil
		}
		return nil, err
	}

	est, err := d.estimator.Estimate(ctx, commodity.Code, flows)
	if err != nil {
		return nil, err
	}
	for _, gap := range est.DataGaps {
		d.reporter.Gap(commodity.Code, gap)
		p.metrics.DataGap()
	}

	prodSel, err := d.selector.Select(commodity.Code, selection.KindProduction, est.Production)
	if err != nil {
		return nil, err
	}
	consSel, err := d.selector.Select(commodity.Code, selection.KindConsumption, est.Consumption)
	if err != nil {
		return nil, err
	}

	if prodSel.Unregionalizable() {
		d.reporter.Skip(commodity.Code, "no production volume anywhere")
		log.Warn("skipping commodity without production volume")
		return nil, nil
	}

	techShares := p.technologyShares(commodity, d)

	producers := make(map[string][]Producer, len(prodSel.Entries))
	for _, entry := range prodSel.Entries {
		list, err := p.cloneCountry(ctx, commodity, entry.Country, entry.Volume, techShares, d)
		if err != nil {
			return nil, err
		}
		producers[entry.Country] = list
	}

	var rowProducer *inventory.ProcessNode
	if prodSel.RoW != nil && prodSel.RoW.Share > 0 {
		rowProducer, err = p.cloneRoW(ctx, commodity, d)
		if err != nil {
			return nil, err
		}
	}

	transport := TransportMix(d.markets)
	unit := d.templates[0].Unit

	exportMarket, err := d.assembler.BuildExportMarket(commodity, prodSel, producers, rowProducer, transport, unit)
	if err != nil {
		return nil, err
	}

	out := &commodityOutput{
		commodity:          commodity,
		consumptionMarkets: make(map[string]*inventory.ProcessNode),
	}

	imports := importTotals(est.Flows)
	for _, entry := range consSel.Entries {
		consumption := est.Consumption[entry.Country]
		if consumption <= 0 {
			continue
		}
		ds := clamp01((consumption - imports[entry.Country]) / consumption)
		market, err := d.assembler.BuildConsumptionMarket(
			commodity, entry.Country, ds, producers[entry.Country], exportMarket, transport, unit)
		if err != nil {
			return nil, err
		}
		out.consumptionMarkets[entry.Country] = market
	}

	if consSel.RoW != nil && consSel.RoW.Share > 0 {
		market, err := p.buildRoWConsumption(commodity, consSel, est, imports, rowProducer, exportMarket, transport, unit, d)
		if err != nil {
			return nil, err
		}
		if market != nil {
			out.consumptionMarkets[RoWCountry] = market
		}
	}

	d.reporter.Regionalized()
	return out, nil
}

// technologyShares derives the global technology prior for a commodity.
func (p *Pipeline) technologyShares(commodity Commodity, d commodityDeps) []TechnologyShare {
	techSet := make(map[string]bool)
	for _, t := range d.templates {
		techSet[t.Technology] = true
	}
	technologies := make([]string, 0, len(techSet))
	for t := range techSet {
		technologies = append(technologies, t)
	}

	return d.allocator.GlobalShares(commodity.Product, technologies, d.markets,
		func(ref inventory.FlowRef) (string, bool) {
			n, ok := d.arena.Lookup(ref.Key())
			if !ok {
				return "", false
			}
			return n.Technology, true
		})
}

// cloneCountry allocates a country's volume across technologies and clones
// one production node per positive-share technology.
func (p *Pipeline) cloneCountry(
	ctx context.Context,
	commodity Commodity,
	country string,
	volume float64,
	techShares []TechnologyShare,
	d commodityDeps,
) ([]Producer, error) {
	allocs, err := d.allocator.Allocate(volume, techShares)
	if err != nil {
		return nil, err
	}

	byTech := make(map[string][]*inventory.ProcessNode)
	for _, t := range d.templates {
		byTech[t.Technology] = append(byTech[t.Technology], t)
	}

	out := make([]Producer, 0, len(allocs))
	for _, alloc := range allocs {
		templates := byTech[alloc.Technology]
		if len(templates) == 0 {
			d.reporter.Gap(commodity.Code, "no template for technology "+alloc.Technology)
			p.metrics.DataGap()
			continue
		}
		tmpl, res, err := d.cloner.SelectTemplate(country, templates)
		if err != nil {
			return nil, err
		}
		d.reporter.Arbitrary(res.Strategy, commodity.Code, country, commodity.Product, res.Location)

		cres, err := d.cloner.Clone(ctx, commodity, country, tmpl)
		if err != nil {
			return nil, err
		}
		for _, fb := range cres.InputFallbacks {
			d.reporter.Arbitrary(fb.Strategy, commodity.Code, country, fb.Product, fb.Location)
		}
		out = append(out, Producer{Node: cres.Node, Volume: alloc.Volume})
	}
	return out, nil
}

// cloneRoW builds the aggregated Rest-of-World production node.
func (p *Pipeline) cloneRoW(ctx context.Context, commodity Commodity, d commodityDeps) (*inventory.ProcessNode, error) {
	tmpl, res, err := d.cloner.SelectTemplate(RoWCountry, d.templates)
	if err != nil {
		return nil, err
	}
	d.reporter.Arbitrary(res.Strategy, commodity.Code, RoWCountry, commodity.Product, res.Location)

	cres, err := d.cloner.Clone(ctx, commodity, RoWCountry, tmpl)
	if err != nil {
		return nil, err
	}
	return cres.Node, nil
}

// buildRoWConsumption assembles the consumption market of the aggregated
// non-selected consumers.
func (p *Pipeline) buildRoWConsumption(
	commodity Commodity,
	consSel *selection.Result,
	est *trade.Estimate,
	imports map[string]float64,
	rowProducer *inventory.ProcessNode,
	exportMarket *inventory.ProcessNode,
	transport []inventory.Exchange,
	unit string,
	d commodityDeps,
) (*inventory.ProcessNode, error) {
	var consumption, imported float64
	for country, c := range est.Consumption {
		if consSel.Selected(country) {
			continue
		}
		consumption += c
		imported += imports[country]
	}
	if consumption <= 0 {
		return nil, nil
	}

	ds := clamp01((consumption - imported) / consumption)
	var own []Producer
	if rowProducer != nil {
		own = []Producer{{Node: rowProducer, Volume: consumption}}
	}
	return d.assembler.BuildConsumptionMarket(commodity, RoWCountry, ds, own, exportMarket, transport, unit)
}

// isInvariantViolation reports whether the error is fatal to one
// commodity's processing but not to the run: shares out of tolerance or
// negative volumes after correction.  Infrastructure failures are not in
// this class and abort the run.
func isInvariantViolation(err error) bool {
	return appErrors.IsCode(err, appErrors.CodeShareInvariant) ||
		appErrors.IsCode(err, appErrors.CodeNegativeVolume) ||
		appErrors.IsCode(err, appErrors.CodeInvariantViolation)
}

// importTotals sums corrected flow values per importing country, excluding
// domestic flows.
func importTotals(flows []trade.Flow) map[string]float64 {
	out := make(map[string]float64)
	for _, f := range flows {
		if f.Exporter == f.Importer {
			continue
		}
		out[f.Importer] += f.Value
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
