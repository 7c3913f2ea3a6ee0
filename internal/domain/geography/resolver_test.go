package geography

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

func testMapping() StaticMapping {
	return StaticMapping{
		"SE": {"RER", "Europe without Switzerland"},
		"CA": {"RNA", "CA-QC"},
		"BR": {"RLA"},
	}
}

func TestResolve_StrategyChain(t *testing.T) {
	t.Parallel()

	r := NewResolver(testMapping())

	tests := []struct {
		name         string
		country      string
		available    []string
		wantLocation string
		wantStrategy Strategy
	}{
		{"exact match wins", "SE", []string{"RER", "SE", "GLO"}, "SE", StrategyExact},
		{"first mapped region", "SE", []string{"Europe without Switzerland", "RER", "GLO"}, "RER", StrategyMappedRegion},
		{"second mapped region", "SE", []string{"Europe without Switzerland", "GLO"}, "Europe without Switzerland", StrategyMappedRegion},
		{"row preferred over glo", "SE", []string{"GLO", "RoW"}, "RoW", StrategyGlobal},
		{"glo fallback", "BR", []string{"GLO", "CN"}, "GLO", StrategyGlobal},
		{"world fallback", "BR", []string{"World", "CN"}, "World", StrategyGlobal},
		{"arbitrary is lexicographically first", "BR", []string{"ZA", "CN", "IN"}, "CN", StrategyArbitrary},
		{"unmapped country goes global", "JP", []string{"RoW", "RER"}, "RoW", StrategyGlobal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := r.Resolve(tt.country, tt.available)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLocation, res.Location)
			assert.Equal(t, tt.wantStrategy, res.Strategy)
		})
	}
}

func TestResolve_NoTemplatesIsStructural(t *testing.T) {
	t.Parallel()

	r := NewResolver(testMapping())
	_, err := r.Resolve("SE", nil)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeNoTemplate))
	assert.True(t, appErrors.IsStructural(err))
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	r := NewResolver(testMapping())
	available := []string{"ZA", "CN", "IN"}
	first, err := r.Resolve("BR", available)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		res, err := r.Resolve("BR", available)
		require.NoError(t, err)
		assert.Equal(t, first, res)
	}
}

func TestStaticMapping_Countries(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"BR", "CA", "SE"}, testMapping().Countries())
	assert.Empty(t, testMapping().RegionsFor("JP"))
}
