package spatial

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/regioflow/internal/domain/inventory"
	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

var co2 = inventory.ElemFlowRef{
	Name:        "Carbon dioxide, fossil",
	Compartment: "air",
}

func TestSpatializedFlow_Idempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ctx := context.Background()

	first, err := r.SpatializedFlow(ctx, co2, "SE")
	require.NoError(t, err)
	second, err := r.SpatializedFlow(ctx, co2, "SE")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, r.Created(), 1)
}

func TestSpatializedFlow_StableAcrossRegistries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, err := NewRegistry().SpatializedFlow(ctx, co2, "SE")
	require.NoError(t, err)
	b, err := NewRegistry().SpatializedFlow(ctx, co2, "SE")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSpatializedFlow_DistinctPairsDistinctIDs(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ctx := context.Background()

	se, err := r.SpatializedFlow(ctx, co2, "SE")
	require.NoError(t, err)
	no, err := r.SpatializedFlow(ctx, co2, "NO")
	require.NoError(t, err)
	assert.NotEqual(t, se, no)

	water := inventory.ElemFlowRef{Name: "Water", Compartment: "water", Subcompartment: "river"}
	w, err := r.SpatializedFlow(ctx, water, "SE")
	require.NoError(t, err)
	assert.NotEqual(t, se, w)

	assert.Len(t, r.Created(), 3)
}

func TestSpatializedFlow_Validation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ctx := context.Background()

	_, err := r.SpatializedFlow(ctx, inventory.ElemFlowRef{Name: "x"}, "SE")
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeSpatialError))

	_, err = r.SpatializedFlow(ctx, co2, "")
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeSpatialError))
}

func TestSpatializedFlow_ConcurrentMinting(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ctx := context.Background()

	ids := make([]uuid.UUID, 32)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := r.SpatializedFlow(ctx, co2, "SE")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, r.Created(), 1)
}

func TestCreated_SortedDeterministically(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ctx := context.Background()

	_, _ = r.SpatializedFlow(ctx, co2, "SE")
	_, _ = r.SpatializedFlow(ctx, co2, "NO")
	water := inventory.ElemFlowRef{Name: "Ammonia", Compartment: "air"}
	_, _ = r.SpatializedFlow(ctx, water, "SE")

	created := r.Created()
	require.Len(t, created, 3)
	assert.Equal(t, "Ammonia", created[0].Base.Name)
	assert.Equal(t, "NO", created[1].Location)
	assert.Equal(t, "SE", created[2].Location)
}
