package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/lp-apy/internal/model"
)

func TestNormalize_ValidRecord(t *testing.T) {
	raw := model.RawPoolRecord{
		"pool":        "p1",
		"chain":       "Ethereum",
		"project":     "uniswap-v2",
		"symbol":      "ETH-USDC",
		"tvlUsd":      1_000_000.0,
		"apy":         12.5,
		"volumeUsd7d": 50_000.0,
	}

	pool, err := Normalize(raw, 10_000)
	require.NoError(t, err)

	assert.Equal(t, "p1", pool.ID)
	assert.Equal(t, "Ethereum", pool.Chain)
	assert.Equal(t, "uniswap-v2", pool.Project)
	require.NotNil(t, pool.TVL)
	assert.Equal(t, 1_000_000.0, *pool.TVL)
	require.NotNil(t, pool.ReportedAPY)
	assert.Equal(t, 12.5, *pool.ReportedAPY)
	require.NotNil(t, pool.Volume)
	assert.Equal(t, 50_000.0, *pool.Volume)
	assert.False(t, pool.IsThin)
}

func TestNormalize_MissingID(t *testing.T) {
	tests := []struct {
		name string
		raw  model.RawPoolRecord
	}{
		{name: "absent", raw: model.RawPoolRecord{"tvlUsd": 100.0}},
		{name: "empty", raw: model.RawPoolRecord{"pool": ""}},
		{name: "whitespace", raw: model.RawPoolRecord{"pool": "   "}},
		{name: "wrong type", raw: model.RawPoolRecord{"pool": 42.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, 10_000)
			require.Error(t, err)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestNormalize_IDFallbacks(t *testing.T) {
	pool, err := Normalize(model.RawPoolRecord{"id": "alt"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "alt", pool.ID)

	pool, err = Normalize(model.RawPoolRecord{"poolId": "alt2"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "alt2", pool.ID)
}

func TestNormalize_CoercesBadNumericsToNil(t *testing.T) {
	tests := []struct {
		name string
		tvl  interface{}
	}{
		{name: "negative", tvl: -5.0},
		{name: "non-numeric string", tvl: "n/a"},
		{name: "nan", tvl: math.NaN()},
		{name: "positive infinity", tvl: math.Inf(1)},
		{name: "bool", tvl: true},
		{name: "null", tvl: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := Normalize(model.RawPoolRecord{"pool": "p1", "tvlUsd": tt.tvl}, 10_000)
			require.NoError(t, err)
			assert.Nil(t, pool.TVL, "bad value must become nil, never zero")
			assert.False(t, pool.IsThin, "unknown TVL is not thin")
		})
	}
}

func TestNormalize_AcceptsNumericVariants(t *testing.T) {
	tests := []struct {
		name string
		tvl  interface{}
		want float64
	}{
		{name: "float64", tvl: 250.5, want: 250.5},
		{name: "int", tvl: 300, want: 300},
		{name: "json.Number", tvl: json.Number("1234.5"), want: 1234.5},
		{name: "numeric string", tvl: "42", want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := Normalize(model.RawPoolRecord{"pool": "p1", "tvlUsd": tt.tvl}, 10)
			require.NoError(t, err)
			require.NotNil(t, pool.TVL)
			assert.Equal(t, tt.want, *pool.TVL)
		})
	}
}

func TestNormalize_ThinFlag(t *testing.T) {
	pool, err := Normalize(model.RawPoolRecord{"pool": "p2", "tvlUsd": 500.0, "apy": 40.0}, 10_000)
	require.NoError(t, err)
	assert.True(t, pool.IsThin)

	// At the threshold is not thin
	pool, err = Normalize(model.RawPoolRecord{"pool": "p2", "tvlUsd": 10_000.0}, 10_000)
	require.NoError(t, err)
	assert.False(t, pool.IsThin)
}

func TestNormalize_APYAndVolumeFallbacks(t *testing.T) {
	raw := model.RawPoolRecord{
		"pool":        "p3",
		"apyBase":     3.2,
		"volumeUsd1d": 900.0,
	}

	pool, err := Normalize(raw, 0)
	require.NoError(t, err)
	require.NotNil(t, pool.ReportedAPY)
	assert.Equal(t, 3.2, *pool.ReportedAPY)
	require.NotNil(t, pool.Volume)
	assert.Equal(t, 900.0, *pool.Volume)
}

func TestNormalize_OutlierFlag(t *testing.T) {
	tests := []struct {
		name    string
		outlier interface{}
		want    *bool
	}{
		{name: "bool true", outlier: true, want: model.Bool(true)},
		{name: "bool false", outlier: false, want: model.Bool(false)},
		{name: "string true", outlier: "true", want: model.Bool(true)},
		{name: "string false", outlier: "False", want: model.Bool(false)},
		{name: "absent", outlier: nil, want: nil},
		{name: "garbage string", outlier: "maybe", want: nil},
		{name: "wrong type", outlier: 1.0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := model.RawPoolRecord{"pool": "p1"}
			if tt.outlier != nil {
				raw["outlier"] = tt.outlier
			}

			pool, err := Normalize(raw, 10_000)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pool.Outlier)
		})
	}
}

func TestNormalize_NeverNegativeFields(t *testing.T) {
	raws := []model.RawPoolRecord{
		{"pool": "a", "tvlUsd": -1.0, "apy": -2.0, "volumeUsd7d": -3.0},
		{"pool": "b", "tvlUsd": 10.0, "apy": 0.0, "volumeUsd7d": 5.0},
		{"pool": "c", "tvlUsd": "oops", "apy": math.Inf(-1)},
	}

	for _, raw := range raws {
		pool, err := Normalize(raw, 100)
		require.NoError(t, err)
		for name, f := range map[string]*float64{"tvl": pool.TVL, "apy": pool.ReportedAPY, "volume": pool.Volume} {
			if f != nil {
				assert.GreaterOrEqual(t, *f, 0.0, "field %s on pool %s", name, pool.ID)
			}
		}
	}
}

func TestNormalizeAll_SkipsBadRecords(t *testing.T) {
	raws := []model.RawPoolRecord{
		{"pool": "p1", "tvlUsd": 100.0},
		{"tvlUsd": 100.0}, // no id
		{"pool": "p2"},
	}

	pools, skipped := NormalizeAll(raws, 10)
	assert.Len(t, pools, 2)
	assert.Equal(t, 1, skipped)
}
