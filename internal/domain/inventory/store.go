package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Store loads template process nodes from the inventory database.
// Implementations live under internal/infrastructure/database.
type Store interface {
	// TemplatesForProduct returns every transforming process whose
	// reference product matches product, across all geographies.
	TemplatesForProduct(ctx context.Context, product string) ([]*ProcessNode, error)

	// MarketsForProduct returns every market activity for product.
	// Used as templates for transport-mix averaging.
	MarketsForProduct(ctx context.Context, product string) ([]*ProcessNode, error)

	// Products returns the distinct reference products that have at least
	// one transforming process, sorted lexicographically.
	Products(ctx context.Context) ([]string, error)
}

// Spatializer returns the identifier of the location-specific variant of
// an elementary flow, creating it on first request.  Implementations must
// be idempotent: the same (flow, location) pair always yields the same id.
type Spatializer interface {
	SpatializedFlow(ctx context.Context, base ElemFlowRef, location string) (uuid.UUID, error)
}

// Writer persists the nodes created by a regionalization run.
type Writer interface {
	// WriteNodes stores the given nodes atomically; a failure writes
	// nothing.
	WriteNodes(ctx context.Context, runID string, nodes []*ProcessNode) error
}
