package inventory

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

// Arena owns every process node of one regionalization run: the immutable
// templates loaded from the inventory store plus all regionalized copies
// created by the pipeline.  It is safe for concurrent use; per-commodity
// workers insert clones while readers resolve supplier references.
type Arena struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*ProcessNode
	byKey    map[NodeKey]uuid.UUID
	byProd   map[string][]uuid.UUID // product -> node ids, insertion order
	template map[uuid.UUID]bool
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{
		byID:     make(map[uuid.UUID]*ProcessNode),
		byKey:    make(map[NodeKey]uuid.UUID),
		byProd:   make(map[string][]uuid.UUID),
		template: make(map[uuid.UUID]bool),
	}
}

// AddTemplate registers a node loaded from the inventory store.  Template
// nodes must never be mutated after registration; the cloner copies them.
func (a *Arena) AddTemplate(n *ProcessNode) error {
	return a.add(n, true)
}

// Add registers a node produced by the pipeline.
func (a *Arena) Add(n *ProcessNode) error {
	return a.add(n, false)
}

func (a *Arena) add(n *ProcessNode, isTemplate bool) error {
	if err := n.Validate(); err != nil {
		return appErrors.Wrap(err, appErrors.CodeInvalidParam, "invalid node")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.byID[n.ID]; ok {
		return appErrors.Newf(appErrors.CodeDuplicateNode, "node id %s already registered", n.ID)
	}
	if prev, ok := a.byKey[n.Key()]; ok {
		return appErrors.Newf(appErrors.CodeDuplicateNode,
			"key %q already held by node %s", n.Key(), prev)
	}

	a.byID[n.ID] = n
	a.byKey[n.Key()] = n.ID
	a.byProd[n.Product] = append(a.byProd[n.Product], n.ID)
	if isTemplate {
		a.template[n.ID] = true
	}
	return nil
}

// Get returns the node with the given id.
func (a *Arena) Get(id uuid.UUID) (*ProcessNode, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n, ok := a.byID[id]
	if !ok {
		return nil, appErrors.Newf(appErrors.CodeNodeNotFound, "no node with id %s", id)
	}
	return n, nil
}

// Lookup returns the node with the given natural key.
func (a *Arena) Lookup(key NodeKey) (*ProcessNode, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.byKey[key]
	if !ok {
		return nil, false
	}
	return a.byID[id], true
}

// ByProduct returns every node whose reference product matches product.
// The result is a fresh slice in insertion order.
func (a *Arena) ByProduct(product string) []*ProcessNode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := a.byProd[product]
	out := make([]*ProcessNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.byID[id])
	}
	return out
}

// TemplatesByProduct returns every template node whose reference product
// matches product, in insertion order.
func (a *Arena) TemplatesByProduct(product string) []*ProcessNode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := a.byProd[product]
	out := make([]*ProcessNode, 0, len(ids))
	for _, id := range ids {
		if a.template[id] {
			out = append(out, a.byID[id])
		}
	}
	return out
}

// IsTemplate reports whether the node was registered as a template.
func (a *Arena) IsTemplate(id uuid.UUID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.template[id]
}

// Len returns the number of registered nodes.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byID)
}

// Nodes returns every registered node sorted by natural key, giving
// deterministic iteration order for write-back and reporting.
func (a *Arena) Nodes() []*ProcessNode {
	a.mu.RLock()
	out := make([]*ProcessNode, 0, len(a.byID))
	for _, n := range a.byID {
		out = append(out, n)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		if ki.Product != kj.Product {
			return ki.Product < kj.Product
		}
		if ki.Name != kj.Name {
			return ki.Name < kj.Name
		}
		return ki.Location < kj.Location
	})
	return out
}

// Created returns every non-template node sorted by natural key.
func (a *Arena) Created() []*ProcessNode {
	all := a.Nodes()
	out := make([]*ProcessNode, 0, len(all))
	for _, n := range all {
		if !a.IsTemplate(n.ID) {
			out = append(out, n)
		}
	}
	return out
}
