package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/lp-apy/internal/model"
)

func TestEstimate_ReportedHealthyPool(t *testing.T) {
	pool := model.NormalizedPool{
		ID:          "p1",
		TVL:         model.Float(1_000_000),
		ReportedAPY: model.Float(12.5),
	}

	got := Default().Estimate(pool)

	assert.Equal(t, model.BasisReported, got.Basis)
	require.NotNil(t, got.Value)
	assert.Equal(t, 12.5, *got.Value)
	assert.Empty(t, got.Warnings)
}

func TestEstimate_ReportedThinPool(t *testing.T) {
	pool := model.NormalizedPool{
		ID:          "p2",
		TVL:         model.Float(500),
		ReportedAPY: model.Float(40.0),
		IsThin:      true,
	}

	got := Default().Estimate(pool)

	assert.Equal(t, model.BasisReported, got.Basis)
	require.NotNil(t, got.Value)
	assert.Equal(t, 40.0, *got.Value)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "thin pools.")
}

func TestEstimate_DerivedFromVolume(t *testing.T) {
	pool := model.NormalizedPool{
		ID:     "p3",
		TVL:    model.Float(200_000),
		Volume: model.Float(50_000),
	}

	got := Default().Estimate(pool)

	assert.Equal(t, model.BasisDerivedFromVolume, got.Basis)
	require.NotNil(t, got.Value)
	// (50000/7) * 0.003 * 365 / 200000 * 100
	assert.InDelta(t, 3.910714285714286, *got.Value, 1e-9)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "not directly reported")
}

func TestEstimate_DerivedThinPoolGetsBothWarnings(t *testing.T) {
	pool := model.NormalizedPool{
		ID:     "p3b",
		TVL:    model.Float(5_000),
		Volume: model.Float(1_000),
		IsThin: true,
	}

	got := Default().Estimate(pool)

	assert.Equal(t, model.BasisDerivedFromVolume, got.Basis)
	assert.Equal(t, []string{WarnDerived, WarnThinPool}, got.Warnings)
}

func TestEstimate_InsufficientData(t *testing.T) {
	tests := []struct {
		name string
		pool model.NormalizedPool
	}{
		{name: "nothing known", pool: model.NormalizedPool{ID: "p4"}},
		{name: "volume without tvl", pool: model.NormalizedPool{ID: "p5", Volume: model.Float(100)}},
		{name: "volume with zero tvl", pool: model.NormalizedPool{ID: "p6", Volume: model.Float(100), TVL: model.Float(0)}},
		{name: "tvl only", pool: model.NormalizedPool{ID: "p7", TVL: model.Float(100)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Default().Estimate(tt.pool)
			assert.Equal(t, model.BasisInsufficientData, got.Basis)
			assert.Nil(t, got.Value)
			require.Len(t, got.Warnings, 1)
			assert.Contains(t, got.Warnings[0], "insufficient data")
		})
	}
}

// Value is nil exactly when the basis is insufficient-data.
func TestEstimate_ValueBasisInvariant(t *testing.T) {
	pools := []model.NormalizedPool{
		{ID: "a", ReportedAPY: model.Float(5)},
		{ID: "b", ReportedAPY: model.Float(5), IsThin: true},
		{ID: "c", TVL: model.Float(1000), Volume: model.Float(10)},
		{ID: "d"},
		{ID: "e", TVL: model.Float(0), Volume: model.Float(10)},
	}

	for _, pool := range pools {
		got := Default().Estimate(pool)
		assert.Equal(t, got.Value == nil, got.Basis == model.BasisInsufficientData, "pool %s", pool.ID)
	}
}

func TestEstimate_Idempotent(t *testing.T) {
	pool := model.NormalizedPool{
		ID:     "p",
		TVL:    model.Float(200_000),
		Volume: model.Float(50_000),
	}

	e := Default()
	first := e.Estimate(pool)
	second := e.Estimate(pool)
	assert.Equal(t, first, second)
}

func TestEstimate_ZeroWindowDoesNotDivideByZero(t *testing.T) {
	e := Estimator{FeeRate: 0.003, VolumeWindowDays: 0}
	pool := model.NormalizedPool{ID: "p", TVL: model.Float(1000), Volume: model.Float(100)}

	got := e.Estimate(pool)
	assert.Equal(t, model.BasisDerivedFromVolume, got.Basis)
	require.NotNil(t, got.Value)
	assert.False(t, *got.Value < 0)
}
