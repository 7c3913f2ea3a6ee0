package selection

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

func mustSelector(t *testing.T, cutoff float64) *Selector {
	t.Helper()
	s, err := NewSelector(cutoff, 1e-6)
	require.NoError(t, err)
	return s
}

func TestNewSelector_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewSelector(0, 1e-6)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeInvalidCutoff))

	_, err = NewSelector(1.1, 1e-6)
	require.Error(t, err)

	_, err = NewSelector(0.9, 0)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeInvalidParam))
}

func TestSelect_CutoffPartition(t *testing.T) {
	t.Parallel()

	// A(70%), B(25%), C(5%), cutoff 0.9: A and B are selected and C
	// folds into RoW with 5%.
	volumes := map[string]float64{"A": 70, "B": 25, "C": 5}

	res, err := mustSelector(t, 0.9).Select("X", KindProduction, volumes)
	require.NoError(t, err)

	require.Len(t, res.Entries, 2)
	assert.Equal(t, "A", res.Entries[0].Country)
	assert.Equal(t, "B", res.Entries[1].Country)
	require.NotNil(t, res.RoW)
	assert.InDelta(t, 0.05, res.RoW.Share, 1e-9)
	assert.InDelta(t, 1.0, res.ShareSum(), 1e-6)
}

func TestSelect_CutoffOneSelectsAllPositive(t *testing.T) {
	t.Parallel()

	volumes := map[string]float64{"A": 70, "B": 25, "C": 5, "D": 0}

	res, err := mustSelector(t, 1.0).Select("X", KindProduction, volumes)
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	assert.Nil(t, res.RoW)
	assert.InDelta(t, 1.0, res.ShareSum(), 1e-6)
	assert.False(t, res.Selected("D"))
}

func TestSelect_CutoffOneNeverEmitsRoundingRoW(t *testing.T) {
	t.Parallel()

	// The sorted cumulative sum and the map-order total round differently
	// for these addends, leaving an epsilon residue at cutoff 1 that must
	// not become a RoW entry.
	volumes := map[string]float64{"A": 0.4, "B": 0.3, "C": 0.2, "D": 0.1}

	for i := 0; i < 20; i++ {
		res, err := mustSelector(t, 1.0).Select("X", KindProduction, volumes)
		require.NoError(t, err)
		require.Len(t, res.Entries, 4)
		assert.Nil(t, res.RoW)
		assert.InDelta(t, 1.0, res.ShareSum(), 1e-6)
	}
}

func TestSelect_ZeroTotalIsUnregionalizable(t *testing.T) {
	t.Parallel()

	res, err := mustSelector(t, 0.9).Select("X", KindConsumption,
		map[string]float64{"A": 0, "B": 0})
	require.NoError(t, err)

	assert.True(t, res.Unregionalizable())
	require.NotNil(t, res.RoW)
	assert.Equal(t, 0.0, res.RoW.Volume)
	assert.Equal(t, 0.0, res.RoW.Share)
}

func TestSelect_NegativeVolumeIsFatal(t *testing.T) {
	t.Parallel()

	_, err := mustSelector(t, 0.9).Select("X", KindProduction,
		map[string]float64{"A": 10, "B": -1})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeNegativeVolume))
}

func TestSelect_TieBreakIsDeterministic(t *testing.T) {
	t.Parallel()

	volumes := map[string]float64{"SE": 10, "NO": 10, "DK": 10, "FI": 70}

	var first *Result
	for i := 0; i < 20; i++ {
		res, err := mustSelector(t, 0.85).Select("X", KindProduction, volumes)
		require.NoError(t, err)
		if first == nil {
			first = res
			continue
		}
		require.Equal(t, len(first.Entries), len(res.Entries))
		for j := range first.Entries {
			assert.Equal(t, first.Entries[j].Country, res.Entries[j].Country)
		}
	}
	// FI first, then ties in code order.
	assert.Equal(t, "FI", first.Entries[0].Country)
	assert.Equal(t, "DK", first.Entries[1].Country)
}

func TestSelect_MonotoneInCutoff(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	volumes := make(map[string]float64)
	for i := 0; i < 40; i++ {
		volumes[fmt.Sprintf("C%02d", i)] = rng.Float64() * 1000
	}

	var prev map[string]bool
	for _, cutoff := range []float64{0.5, 0.7, 0.9, 0.95, 0.99, 1.0} {
		res, err := mustSelector(t, cutoff).Select("X", KindProduction, volumes)
		require.NoError(t, err)

		cur := make(map[string]bool, len(res.Entries))
		for _, e := range res.Entries {
			cur[e.Country] = true
		}
		for c := range prev {
			assert.True(t, cur[c], "country %s dropped when cutoff raised to %v", c, cutoff)
		}
		prev = cur
	}
}

func TestSelect_SharesSumToOne_Randomized(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 100; trial++ {
		volumes := make(map[string]float64)
		n := 1 + rng.Intn(60)
		for i := 0; i < n; i++ {
			volumes[fmt.Sprintf("C%02d", i)] = rng.Float64() * 1e6
		}
		cutoff := 0.1 + 0.9*rng.Float64()

		res, err := mustSelector(t, cutoff).Select("X", KindProduction, volumes)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, res.ShareSum(), 1e-6)
	}
}

func TestResult_ShareLookup(t *testing.T) {
	t.Parallel()

	res, err := mustSelector(t, 0.9).Select("X", KindProduction,
		map[string]float64{"A": 70, "B": 25, "C": 5})
	require.NoError(t, err)

	assert.InDelta(t, 0.70, res.Share("A"), 1e-9)
	assert.InDelta(t, 0.05, res.Share(RoWCode), 1e-9)
	assert.Equal(t, 0.0, res.Share("ZZ"))
	assert.True(t, res.Selected("A"))
	assert.False(t, res.Selected("C"))
}
