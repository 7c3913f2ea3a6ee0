package regionalization

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/regioflow/internal/domain/geography"
	"github.com/turtacn/regioflow/internal/domain/inventory"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/regioflow/internal/infrastructure/spatial"
)

var widget = Commodity{Code: "9999", Product: "widget"}

func testClonerMapping() geography.StaticMapping {
	return geography.StaticMapping{
		"SE": {"RER"},
		"CA": {"RNA"},
	}
}

func electricityTemplate(location string) *inventory.ProcessNode {
	return &inventory.ProcessNode{
		ID:       uuid.New(),
		Type:     inventory.TypeMarket,
		Name:     "market for electricity, medium voltage",
		Product:  "electricity, medium voltage",
		Location: location,
		Unit:     "kWh",
		Exchanges: []inventory.Exchange{
			{Kind: inventory.KindProduction, Amount: 1, Unit: "kWh"},
		},
	}
}

func widgetTemplate(location string) *inventory.ProcessNode {
	return &inventory.ProcessNode{
		ID:       uuid.New(),
		Type:     inventory.TypeProcess,
		Name:     "widget production",
		Product:  "widget",
		Location: location,
		Unit:     "kg",
		Exchanges: []inventory.Exchange{
			{Kind: inventory.KindProduction, Amount: 1, Unit: "kg"},
			{Kind: inventory.KindTechnosphere, Amount: 2.5, Unit: "kWh",
				Supplier: inventory.FlowRef{
					Name:     "market for electricity, medium voltage",
					Product:  "electricity, medium voltage",
					Location: "GLO",
				}},
			{Kind: inventory.KindTechnosphere, Amount: 0.1, Unit: "kg",
				Supplier: inventory.FlowRef{
					Name:     "market for steel",
					Product:  "steel",
					Location: "GLO",
				}},
			{Kind: inventory.KindBiosphere, Amount: 0.3, Unit: "m3",
				ElemFlow: inventory.ElemFlowRef{Name: "Water", Compartment: "water"}},
			{Kind: inventory.KindBiosphere, Amount: 1.2, Unit: "kg",
				ElemFlow: inventory.ElemFlowRef{Name: "Carbon dioxide, fossil", Compartment: "air"}},
		},
	}
}

func newTestCloner(t *testing.T) (*Cloner, *inventory.Arena) {
	t.Helper()
	arena := inventory.NewArena()
	resolver := geography.NewResolver(testClonerMapping())
	return NewCloner(arena, resolver, spatial.NewRegistry(), nil, nil, logging.NewNopLogger()), arena
}

func TestClone_RelocatesAndRewires(t *testing.T) {
	t.Parallel()

	cloner, arena := newTestCloner(t)
	seElec := electricityTemplate("SE")
	gloElec := electricityTemplate("GLO")
	require.NoError(t, arena.AddTemplate(seElec))
	require.NoError(t, arena.AddTemplate(gloElec))

	tmpl := widgetTemplate("GLO")
	require.NoError(t, arena.AddTemplate(tmpl))

	res, err := cloner.Clone(context.Background(), widget, "SE", tmpl)
	require.NoError(t, err)

	node := res.Node
	assert.Equal(t, "SE", node.Location)
	assert.Equal(t, "widget", node.Product)
	assert.NotEqual(t, tmpl.ID, node.ID)
	assert.Contains(t, node.Comment, tmpl.Name)
	assert.Contains(t, node.Comment, "(GLO)")

	// Electricity input rewired to the Swedish supplier.
	elec := node.Exchanges[1]
	assert.Equal(t, "SE", elec.Supplier.Location)
	assert.Equal(t, seElec.ID, elec.Supplier.NodeID)
	assert.Equal(t, 2.5, elec.Amount) // amount untouched

	// Non-regionalizable input untouched.
	steel := node.Exchanges[2]
	assert.Equal(t, "GLO", steel.Supplier.Location)

	// Water flow spatialized, CO2 left alone.
	assert.NotEqual(t, uuid.Nil, node.Exchanges[3].ElemFlow.FlowID)
	assert.Equal(t, uuid.Nil, node.Exchanges[4].ElemFlow.FlowID)

	require.Len(t, res.InputFallbacks, 1)
	assert.Equal(t, geography.StrategyExact, res.InputFallbacks[0].Strategy)
}

func TestClone_InputRewiringIgnoresCreatedNodes(t *testing.T) {
	t.Parallel()

	cloner, arena := newTestCloner(t)
	gloElec := electricityTemplate("GLO")
	require.NoError(t, arena.AddTemplate(gloElec))

	// A clone inserted by a concurrent worker must not influence the
	// supplier choice; only templates count during first-order rewiring.
	seElec := electricityTemplate("SE")
	require.NoError(t, arena.Add(seElec))

	tmpl := widgetTemplate("GLO")
	require.NoError(t, arena.AddTemplate(tmpl))

	res, err := cloner.Clone(context.Background(), widget, "SE", tmpl)
	require.NoError(t, err)

	elec := res.Node.Exchanges[1]
	assert.Equal(t, "GLO", elec.Supplier.Location)
	assert.Equal(t, gloElec.ID, elec.Supplier.NodeID)
}

func TestClone_TemplateNeverMutated(t *testing.T) {
	t.Parallel()

	cloner, arena := newTestCloner(t)
	require.NoError(t, arena.AddTemplate(electricityTemplate("SE")))

	tmpl := widgetTemplate("GLO")
	require.NoError(t, arena.AddTemplate(tmpl))
	before := *tmpl
	beforeExchanges := append([]inventory.Exchange(nil), tmpl.Exchanges...)

	_, err := cloner.Clone(context.Background(), widget, "SE", tmpl)
	require.NoError(t, err)

	assert.Equal(t, before.Location, tmpl.Location)
	assert.Equal(t, beforeExchanges, tmpl.Exchanges)
}

func TestClone_Idempotent(t *testing.T) {
	t.Parallel()

	// The same template set, loaded into two independent runs.
	seElec := electricityTemplate("SE")
	tmpl := widgetTemplate("GLO")

	run := func() *inventory.ProcessNode {
		cloner, arena := newTestCloner(t)
		require.NoError(t, arena.AddTemplate(seElec))
		require.NoError(t, arena.AddTemplate(tmpl))

		res, err := cloner.Clone(context.Background(), widget, "SE", tmpl)
		require.NoError(t, err)
		return res.Node
	}

	first := run()
	second := run()

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Key(), second.Key())
	assert.Equal(t, first.Exchanges, second.Exchanges)
}

func TestClone_RepeatReturnsExistingNode(t *testing.T) {
	t.Parallel()

	cloner, arena := newTestCloner(t)
	require.NoError(t, arena.AddTemplate(electricityTemplate("SE")))
	tmpl := widgetTemplate("GLO")
	require.NoError(t, arena.AddTemplate(tmpl))

	ctx := context.Background()
	first, err := cloner.Clone(ctx, widget, "SE", tmpl)
	require.NoError(t, err)
	second, err := cloner.Clone(ctx, widget, "SE", tmpl)
	require.NoError(t, err)

	assert.Same(t, first.Node, second.Node)
}

func TestClone_TemplateInTargetCountryIsReused(t *testing.T) {
	t.Parallel()

	cloner, arena := newTestCloner(t)
	tmpl := widgetTemplate("SE")
	require.NoError(t, arena.AddTemplate(tmpl))

	res, err := cloner.Clone(context.Background(), widget, "SE", tmpl)
	require.NoError(t, err)
	assert.Same(t, tmpl, res.Node)
	assert.Equal(t, 1, arena.Len())
}

func TestClone_MissingSubstituteIsDataGapNotFailure(t *testing.T) {
	t.Parallel()

	// No electricity suppliers in the arena at all: the exchange keeps
	// its template target.
	cloner, arena := newTestCloner(t)
	tmpl := widgetTemplate("GLO")
	require.NoError(t, arena.AddTemplate(tmpl))

	res, err := cloner.Clone(context.Background(), widget, "SE", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "GLO", res.Node.Exchanges[1].Supplier.Location)
	assert.Empty(t, res.InputFallbacks)
}

func TestSelectTemplate_FallbackChain(t *testing.T) {
	t.Parallel()

	cloner, _ := newTestCloner(t)
	templates := []*inventory.ProcessNode{
		widgetTemplate("RER"),
		widgetTemplate("RoW"),
		widgetTemplate("CN"),
	}

	// SE maps to RER.
	tmpl, res, err := cloner.SelectTemplate("SE", templates)
	require.NoError(t, err)
	assert.Equal(t, "RER", tmpl.Location)
	assert.Equal(t, geography.StrategyMappedRegion, res.Strategy)

	// JP is unmapped and falls to RoW.
	tmpl, res, err = cloner.SelectTemplate("JP", templates)
	require.NoError(t, err)
	assert.Equal(t, "RoW", tmpl.Location)
	assert.Equal(t, geography.StrategyGlobal, res.Strategy)

	// Without worldwide templates the search goes arbitrary.
	tmpl, res, err = cloner.SelectTemplate("JP", templates[2:])
	require.NoError(t, err)
	assert.Equal(t, "CN", tmpl.Location)
	assert.Equal(t, geography.StrategyArbitrary, res.Strategy)

	_, _, err = cloner.SelectTemplate("JP", nil)
	require.Error(t, err)
}
