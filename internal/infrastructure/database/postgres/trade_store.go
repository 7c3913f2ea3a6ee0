package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/regioflow/internal/application/regionalization"
	"github.com/turtacn/regioflow/internal/domain/trade"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

// TradeStore serves raw bilateral trade records, export ratios and the
// commodity catalog from the trade tables.
type TradeStore struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewTradeStore builds a TradeStore over the shared pool.
func NewTradeStore(pool *pgxpool.Pool, log logging.Logger) *TradeStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TradeStore{pool: pool, log: log.Named("trade_store")}
}

const selectFlows = `
SELECT commodity, exporter, importer, year, value
FROM trade_flows
WHERE commodity = $1
ORDER BY year DESC, exporter, importer`

// FlowsForCommodity implements trade.Source.
func (s *TradeStore) FlowsForCommodity(ctx context.Context, commodity string) ([]trade.RawFlow, error) {
	rows, err := s.pool.Query(ctx, selectFlows, commodity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "querying trade flows")
	}
	defer rows.Close()

	var flows []trade.RawFlow
	for rows.Next() {
		var f trade.RawFlow
		if err := rows.Scan(&f.Commodity, &f.Exporter, &f.Importer, &f.Year, &f.Value); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "scanning trade flow")
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

const selectCommodityCodes = `
SELECT DISTINCT commodity FROM trade_flows ORDER BY commodity`

// Commodities implements trade.Source.
func (s *TradeStore) Commodities(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, selectCommodityCodes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "querying commodity codes")
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "scanning commodity code")
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

const selectRatio = `
SELECT ratio FROM export_ratios WHERE commodity = $1`

// Ratio implements trade.RatioTable.  The second return reports coverage;
// a commodity absent from the table is a data gap, not an error.
func (s *TradeStore) Ratio(ctx context.Context, commodity string) (float64, bool, error) {
	var ratio float64
	err := s.pool.QueryRow(ctx, selectRatio, commodity).Scan(&ratio)
	switch {
	case err == pgx.ErrNoRows:
		return 0, false, nil
	case err != nil:
		return 0, false, appErrors.Wrap(err, appErrors.CodeDatabaseError, "querying export ratio")
	}
	return ratio, true, nil
}

// CommodityCatalog serves the commodity-to-product catalog used to drive
// the pipeline fan-out.
type CommodityCatalog struct {
	pool *pgxpool.Pool
}

// NewCommodityCatalog builds a catalog over the shared pool.
func NewCommodityCatalog(pool *pgxpool.Pool) *CommodityCatalog {
	return &CommodityCatalog{pool: pool}
}

const selectCatalog = `
SELECT code, product FROM commodities ORDER BY code`

// Commodities implements regionalization.Catalog.
func (c *CommodityCatalog) Commodities(ctx context.Context) ([]regionalization.Commodity, error) {
	rows, err := c.pool.Query(ctx, selectCatalog)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "querying commodity catalog")
	}
	defer rows.Close()

	var out []regionalization.Commodity
	for rows.Next() {
		var com regionalization.Commodity
		if err := rows.Scan(&com.Code, &com.Product); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "scanning catalog entry")
		}
		out = append(out, com)
	}
	return out, rows.Err()
}
