// Package inventory defines the process-graph model that regionalization
// operates on: process nodes, their exchanges, and the arena that owns
// every node of a run.
package inventory

import (
	"fmt"

	"github.com/google/uuid"
)

// ExchangeKind discriminates the three exchange categories of a process.
type ExchangeKind string

const (
	// KindProduction is the single reference output of a process.
	KindProduction ExchangeKind = "production"
	// KindTechnosphere is an input supplied by another process node.
	KindTechnosphere ExchangeKind = "technosphere"
	// KindBiosphere is an elementary flow to or from the environment.
	KindBiosphere ExchangeKind = "biosphere"
)

// NodeType distinguishes transforming processes from market activities.
type NodeType string

const (
	// TypeProcess is a transforming activity with a technology.
	TypeProcess NodeType = "process"
	// TypeMarket is a mixing activity that aggregates suppliers of one
	// product for one geography.
	TypeMarket NodeType = "market"
)

// FlowRef identifies the supplier of a technosphere exchange.  While an
// exchange is unresolved only the triple is set; resolution fills NodeID
// with the identifier of the node that satisfies the triple.
type FlowRef struct {
	Name     string
	Product  string
	Location string
	NodeID   uuid.UUID
}

// Key returns the lookup key of the referenced supplier.
func (r FlowRef) Key() NodeKey {
	return NodeKey{Name: r.Name, Product: r.Product, Location: r.Location}
}

// ElemFlowRef identifies an elementary flow by name and compartment.
// FlowID is the identifier of the (possibly regionalized) flow in the
// elementary-flow registry.
type ElemFlowRef struct {
	Name           string
	Compartment    string
	Subcompartment string
	FlowID         uuid.UUID
}

// Exchange is one input or output of a process node.  Exactly one of
// Supplier (technosphere) or ElemFlow (biosphere) is meaningful depending
// on Kind; production exchanges use neither.
type Exchange struct {
	Kind     ExchangeKind
	Amount   float64
	Unit     string
	Supplier FlowRef
	ElemFlow ElemFlowRef
}

// ProcessNode is one activity in the inventory graph.  Nodes are owned by
// an Arena; templates loaded from the store are never mutated after load,
// regionalized copies are built from scratch by the cloner.
type ProcessNode struct {
	ID         uuid.UUID
	Type       NodeType
	Name       string
	Product    string
	Location   string
	Unit       string
	Comment    string
	Technology string
	Exchanges  []Exchange
}

// NodeKey is the natural identity of a node inside one database release.
type NodeKey struct {
	Name     string
	Product  string
	Location string
}

func (k NodeKey) String() string {
	return fmt.Sprintf("%s | %s | %s", k.Name, k.Product, k.Location)
}

// Key returns the node's natural key.
func (n *ProcessNode) Key() NodeKey {
	return NodeKey{Name: n.Name, Product: n.Product, Location: n.Location}
}

// Production returns the node's production exchange, or nil when the node
// has none.  A well-formed node has exactly one.
func (n *ProcessNode) Production() *Exchange {
	for i := range n.Exchanges {
		if n.Exchanges[i].Kind == KindProduction {
			return &n.Exchanges[i]
		}
	}
	return nil
}

// TechnosphereInputs returns the indices of all technosphere exchanges.
func (n *ProcessNode) TechnosphereInputs() []int {
	var idx []int
	for i := range n.Exchanges {
		if n.Exchanges[i].Kind == KindTechnosphere {
			idx = append(idx, i)
		}
	}
	return idx
}

// Copy returns a deep copy of the node with a new identifier.  The copy
// shares no slice storage with the original, so mutating the copy's
// exchanges cannot corrupt a template.
func (n *ProcessNode) Copy(id uuid.UUID) *ProcessNode {
	out := &ProcessNode{
		ID:         id,
		Type:       n.Type,
		Name:       n.Name,
		Product:    n.Product,
		Location:   n.Location,
		Unit:       n.Unit,
		Comment:    n.Comment,
		Technology: n.Technology,
		Exchanges:  make([]Exchange, len(n.Exchanges)),
	}
	copy(out.Exchanges, n.Exchanges)
	return out
}

// Validate checks structural well-formedness: a non-empty identity and
// exactly one production exchange with a positive amount.
func (n *ProcessNode) Validate() error {
	if n.ID == uuid.Nil {
		return fmt.Errorf("node %q: missing id", n.Name)
	}
	if n.Name == "" || n.Product == "" || n.Location == "" {
		return fmt.Errorf("node %s: incomplete key %q", n.ID, n.Key())
	}
	var prod int
	for i := range n.Exchanges {
		if n.Exchanges[i].Kind == KindProduction {
			prod++
		}
	}
	if prod != 1 {
		return fmt.Errorf("node %q: expected exactly one production exchange, found %d", n.Key(), prod)
	}
	if p := n.Production(); p.Amount <= 0 {
		return fmt.Errorf("node %q: production amount must be positive, got %v", n.Key(), p.Amount)
	}
	return nil
}
