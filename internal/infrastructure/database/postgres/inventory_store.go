package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/regioflow/internal/domain/inventory"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

// InventoryStore reads template processes and persists regionalized nodes.
// Template rows carry a NULL run_id; regionalized rows carry the id of the
// run that produced them.
type InventoryStore struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewInventoryStore builds an InventoryStore over the shared pool.
func NewInventoryStore(pool *pgxpool.Pool, log logging.Logger) *InventoryStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &InventoryStore{pool: pool, log: log.Named("inventory_store")}
}

const selectNodesByProduct = `
SELECT id, node_type, name, product, location, unit, technology, comment
FROM process_nodes
WHERE product = $1 AND node_type = $2 AND run_id IS NULL
ORDER BY name, location`

// TemplatesForProduct implements inventory.Store.
func (s *InventoryStore) TemplatesForProduct(ctx context.Context, product string) ([]*inventory.ProcessNode, error) {
	return s.nodesByProduct(ctx, product, inventory.TypeProcess)
}

// MarketsForProduct implements inventory.Store.
func (s *InventoryStore) MarketsForProduct(ctx context.Context, product string) ([]*inventory.ProcessNode, error) {
	return s.nodesByProduct(ctx, product, inventory.TypeMarket)
}

func (s *InventoryStore) nodesByProduct(ctx context.Context, product string, nodeType inventory.NodeType) ([]*inventory.ProcessNode, error) {
	rows, err := s.pool.Query(ctx, selectNodesByProduct, product, string(nodeType))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "querying template nodes")
	}
	defer rows.Close()

	var nodes []*inventory.ProcessNode
	for rows.Next() {
		n := &inventory.ProcessNode{}
		var typ string
		if err := rows.Scan(&n.ID, &typ, &n.Name, &n.Product, &n.Location,
			&n.Unit, &n.Technology, &n.Comment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "scanning template node")
		}
		n.Type = inventory.NodeType(typ)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "iterating template nodes")
	}

	for _, n := range nodes {
		if err := s.loadExchanges(ctx, n); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

const selectExchanges = `
SELECT kind, amount, unit,
       supplier_name, supplier_product, supplier_location, supplier_node_id,
       flow_name, flow_compartment, flow_subcompartment, flow_id
FROM exchanges
WHERE process_id = $1
ORDER BY ord`

func (s *InventoryStore) loadExchanges(ctx context.Context, n *inventory.ProcessNode) error {
	rows, err := s.pool.Query(ctx, selectExchanges, n.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDatabaseError, "querying exchanges")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ex         inventory.Exchange
			kind       string
			supplierID *uuid.UUID
			flowID     *uuid.UUID
		)
		if err := rows.Scan(&kind, &ex.Amount, &ex.Unit,
			&ex.Supplier.Name, &ex.Supplier.Product, &ex.Supplier.Location, &supplierID,
			&ex.ElemFlow.Name, &ex.ElemFlow.Compartment, &ex.ElemFlow.Subcompartment, &flowID); err != nil {
			return appErrors.Wrap(err, appErrors.CodeDatabaseError, "scanning exchange")
		}
		ex.Kind = inventory.ExchangeKind(kind)
		if supplierID != nil {
			ex.Supplier.NodeID = *supplierID
		}
		if flowID != nil {
			ex.ElemFlow.FlowID = *flowID
		}
		n.Exchanges = append(n.Exchanges, ex)
	}
	return rows.Err()
}

const selectProducts = `
SELECT DISTINCT product FROM process_nodes
WHERE node_type = 'process' AND run_id IS NULL
ORDER BY product`

// Products implements inventory.Store.
func (s *InventoryStore) Products(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, selectProducts)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "querying products")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "scanning product")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const insertNode = `
INSERT INTO process_nodes (id, run_id, node_type, name, product, location, unit, technology, comment)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const insertExchange = `
INSERT INTO exchanges (process_id, ord, kind, amount, unit,
	supplier_name, supplier_product, supplier_location, supplier_node_id,
	flow_name, flow_compartment, flow_subcompartment, flow_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// WriteNodes implements inventory.Writer.  All nodes of the run are
// written in one transaction; a failure leaves the database untouched.
func (s *InventoryStore) WriteNodes(ctx context.Context, runID string, nodes []*inventory.ProcessNode) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeWriteBackFailed, "beginning transaction")
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, n := range nodes {
		batch.Queue(insertNode, n.ID, runID, string(n.Type), n.Name, n.Product,
			n.Location, n.Unit, n.Technology, n.Comment)
		for ord, ex := range n.Exchanges {
			batch.Queue(insertExchange, n.ID, ord, string(ex.Kind), ex.Amount, ex.Unit,
				ex.Supplier.Name, ex.Supplier.Product, ex.Supplier.Location, nullableUUID(ex.Supplier.NodeID),
				ex.ElemFlow.Name, ex.ElemFlow.Compartment, ex.ElemFlow.Subcompartment, nullableUUID(ex.ElemFlow.FlowID))
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return appErrors.Wrap(err, appErrors.CodeWriteBackFailed, "inserting regionalized nodes")
	}
	if err := tx.Commit(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.CodeWriteBackFailed, "committing write-back")
	}

	s.log.Info("write-back complete",
		logging.String("run_id", runID),
		logging.Int("nodes", len(nodes)))
	return nil
}

// nullableUUID maps the zero uuid to SQL NULL.
func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
