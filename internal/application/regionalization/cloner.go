// Package regionalization orchestrates the batch pipeline that turns a
// location-agnostic inventory graph plus trade statistics into
// country-specific production processes and market nodes.
package regionalization

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/turtacn/regioflow/internal/domain/geography"
	"github.com/turtacn/regioflow/internal/domain/inventory"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

// Commodity binds a trade classification code to the reference product its
// template processes produce.
type Commodity struct {
	Code    string
	Product string
}

// cloneNamespace seeds the deterministic ids of regionalized nodes so that
// re-running a regionalization against the same template set reproduces
// identical nodes.
var cloneNamespace = uuid.MustParse("3c5d1a6e-42bb-49d0-8c11-f2a7e85d90cd")

// defaultRegionalizableInputs are the product categories whose supplying
// exchange is rewired to the country-appropriate substitute during
// cloning.
var defaultRegionalizableInputs = []string{
	"electricity",
	"heat",
	"municipal solid waste",
}

// defaultSpatializedFlows are the elementary-flow name prefixes rewired to
// a country-located variant during cloning.
var defaultSpatializedFlows = []string{
	"Water",
	"Occupation",
	"Transformation",
	"Ammonia",
	"Nitrogen oxides",
	"Sulfur dioxide",
	"Particulate",
	"NMVOC",
}

// spatializedCompartments lists the compartments whose flows have
// spatialized variants.  A name match in any other compartment (e.g. a
// water flow embedded in a product) is left alone.
var spatializedCompartments = map[string]bool{
	"air":              true,
	"water":            true,
	"soil":             true,
	"natural resource": true,
}

// InputFallback records one rewired technosphere input and the strategy
// level that resolved it, for the run report.
type InputFallback struct {
	Product  string
	Location string
	Strategy geography.Strategy
}

// CloneResult is the outcome of regionalizing one template for one
// country.
type CloneResult struct {
	Node             *inventory.ProcessNode
	TemplateLocation string
	TemplateStrategy geography.Strategy
	InputFallbacks   []InputFallback
}

// Cloner builds country-specific copies of template processes.  Templates
// are never mutated; every clone is a fresh node registered in the arena.
type Cloner struct {
	arena       *inventory.Arena
	resolver    *geography.Resolver
	spatializer inventory.Spatializer
	inputs      []string
	flows       []string
	log         logging.Logger
}

// NewCloner builds a Cloner.  Passing nil for regionalizableInputs or
// spatializedFlows selects the default category lists.
func NewCloner(
	arena *inventory.Arena,
	resolver *geography.Resolver,
	spatializer inventory.Spatializer,
	regionalizableInputs []string,
	spatializedFlows []string,
	log logging.Logger,
) *Cloner {
	if regionalizableInputs == nil {
		regionalizableInputs = defaultRegionalizableInputs
	}
	if spatializedFlows == nil {
		spatializedFlows = defaultSpatializedFlows
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Cloner{
		arena:       arena,
		resolver:    resolver,
		spatializer: spatializer,
		inputs:      regionalizableInputs,
		flows:       spatializedFlows,
		log:         log.Named("cloner"),
	}
}

// SelectTemplate picks the template whose location best represents the
// country, following the ordered fallback chain.  Templates are matched by
// location only; callers pre-filter by technology when several compete.
func (c *Cloner) SelectTemplate(country string, templates []*inventory.ProcessNode) (*inventory.ProcessNode, geography.Resolution, error) {
	if len(templates) == 0 {
		return nil, geography.Resolution{}, appErrors.Newf(appErrors.CodeNoTemplate,
			"no templates supplied for country %s", country)
	}

	locations := make([]string, 0, len(templates))
	for _, t := range templates {
		locations = append(locations, t.Location)
	}
	res, err := c.resolver.Resolve(country, locations)
	if err != nil {
		return nil, geography.Resolution{}, err
	}

	// Several templates can share the winning location; take the one with
	// the lexicographically first name so the choice is reproducible.
	var chosen *inventory.ProcessNode
	for _, t := range templates {
		if t.Location != res.Location {
			continue
		}
		if chosen == nil || t.Name < chosen.Name {
			chosen = t
		}
	}
	return chosen, res, nil
}

// Clone regionalizes one template for one country: it copies the template
// under a deterministic id, relocates it, rewires regionalizable
// technosphere inputs to country-appropriate substitutes, and swaps
// regionalizable biosphere flows for their spatialized variants.  Exchange
// amounts are never altered.
func (c *Cloner) Clone(ctx context.Context, commodity Commodity, country string, template *inventory.ProcessNode) (*CloneResult, error) {
	// A template already located in the target country is its own best
	// regionalization; cloning it would collide with the template's key.
	if template.Location == country {
		return &CloneResult{Node: template, TemplateLocation: template.Location}, nil
	}

	id := cloneID(commodity.Product, country, template.Technology, template.Name)

	// Safe re-runs: an identical clone may already exist in the arena.
	if existing, err := c.arena.Get(id); err == nil {
		return &CloneResult{Node: existing, TemplateLocation: template.Location}, nil
	}

	node := template.Copy(id)
	node.Location = country
	node.Comment = "regionalized copy of " + template.Name + " (" + template.Location + ")"

	result := &CloneResult{
		Node:             node,
		TemplateLocation: template.Location,
	}

	for _, i := range node.TechnosphereInputs() {
		ex := &node.Exchanges[i]
		if !matchesAny(ex.Supplier.Product, c.inputs) {
			continue
		}
		fb, err := c.rewireInput(ex, country)
		if err != nil {
			if appErrors.IsCode(err, appErrors.CodeNoTemplate) {
				// No substitute anywhere: keep the original target and
				// move on, this is a data gap rather than a failure.
				c.log.Warn("no substitute supplier, keeping template target",
					logging.String("product", ex.Supplier.Product),
					logging.String("country", country))
				continue
			}
			return nil, err
		}
		result.InputFallbacks = append(result.InputFallbacks, fb)
	}

	for i := range node.Exchanges {
		ex := &node.Exchanges[i]
		if ex.Kind != inventory.KindBiosphere || !matchesAny(ex.ElemFlow.Name, c.flows) {
			continue
		}
		if !spatializedCompartments[strings.ToLower(ex.ElemFlow.Compartment)] {
			continue
		}
		flowID, err := c.spatializer.SpatializedFlow(ctx, ex.ElemFlow, country)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeSpatialError,
				"spatializing "+ex.ElemFlow.Name)
		}
		ex.ElemFlow.FlowID = flowID
	}

	if err := c.arena.Add(node); err != nil {
		// Another worker can register the same clone between the lookup
		// and the insert; the registered copy wins.
		if appErrors.IsCode(err, appErrors.CodeDuplicateNode) {
			if existing, getErr := c.arena.Get(id); getErr == nil {
				return &CloneResult{Node: existing, TemplateLocation: template.Location}, nil
			}
		}
		return nil, err
	}
	return result, nil
}

// rewireInput retargets one regionalizable technosphere exchange at the
// best supplier of the same product for the country.  Resolution runs
// over template nodes only: clones inserted by concurrent workers would
// make the winner depend on scheduling.  Created markets take over
// during second-order relinking.
func (c *Cloner) rewireInput(ex *inventory.Exchange, country string) (InputFallback, error) {
	suppliers := c.arena.TemplatesByProduct(ex.Supplier.Product)
	if len(suppliers) == 0 {
		return InputFallback{}, appErrors.Newf(appErrors.CodeNoTemplate,
			"no suppliers of %s in arena", ex.Supplier.Product)
	}

	locations := make([]string, 0, len(suppliers))
	for _, s := range suppliers {
		locations = append(locations, s.Location)
	}
	res, err := c.resolver.Resolve(country, locations)
	if err != nil {
		return InputFallback{}, err
	}

	var chosen *inventory.ProcessNode
	for _, s := range suppliers {
		if s.Location != res.Location {
			continue
		}
		if chosen == nil || s.Name < chosen.Name {
			chosen = s
		}
	}

	ex.Supplier = inventory.FlowRef{
		Name:     chosen.Name,
		Product:  chosen.Product,
		Location: chosen.Location,
		NodeID:   chosen.ID,
	}
	return InputFallback{
		Product:  ex.Supplier.Product,
		Location: res.Location,
		Strategy: res.Strategy,
	}, nil
}

// matchesAny reports whether name starts with any of the given category
// prefixes, ignoring case.
func matchesAny(name string, categories []string) bool {
	lower := strings.ToLower(name)
	for _, cat := range categories {
		if strings.HasPrefix(lower, strings.ToLower(cat)) {
			return true
		}
	}
	return false
}

// cloneID derives the stable id of a regionalized node.
func cloneID(product, country, technology, templateName string) uuid.UUID {
	seed := strings.Join([]string{product, country, technology, templateName}, "\x00")
	return uuid.NewSHA1(cloneNamespace, []byte(seed))
}
