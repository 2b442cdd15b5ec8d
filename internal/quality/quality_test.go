package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourorg/lp-apy/internal/model"
)

func TestAssess(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name string
		pool model.NormalizedPool
		want Assessment
	}{
		{
			name: "healthy pool",
			pool: model.NormalizedPool{
				ID:          "p1",
				TVL:         model.Float(1_000_000),
				ReportedAPY: model.Float(12.5),
				Volume:      model.Float(50_000),
			},
			want: Assessment{},
		},
		{
			name: "thin but not very thin",
			pool: model.NormalizedPool{
				ID:          "p2",
				TVL:         model.Float(150_000),
				ReportedAPY: model.Float(5),
				Volume:      model.Float(10),
			},
			want: Assessment{ThinTVL: true},
		},
		{
			name: "very thin implies thin",
			pool: model.NormalizedPool{
				ID:          "p3",
				TVL:         model.Float(50_000),
				ReportedAPY: model.Float(5),
				Volume:      model.Float(10),
			},
			want: Assessment{ThinTVL: true, VeryThinTVL: true},
		},
		{
			name: "everything missing",
			pool: model.NormalizedPool{ID: "p4"},
			want: Assessment{MissingOrZeroAPY: true, MissingVolume: true, MissingTVL: true},
		},
		{
			name: "upstream outlier flag carried",
			pool: model.NormalizedPool{
				ID:          "p6",
				TVL:         model.Float(1_000_000),
				ReportedAPY: model.Float(900),
				Volume:      model.Float(10),
				Outlier:     model.Bool(true),
			},
			want: Assessment{UpstreamOutlier: true},
		},
		{
			name: "upstream outlier false is not flagged",
			pool: model.NormalizedPool{
				ID:          "p7",
				TVL:         model.Float(1_000_000),
				ReportedAPY: model.Float(5),
				Volume:      model.Float(10),
				Outlier:     model.Bool(false),
			},
			want: Assessment{},
		},
		{
			name: "zero apy flagged",
			pool: model.NormalizedPool{
				ID:          "p5",
				TVL:         model.Float(1_000_000),
				ReportedAPY: model.Float(0),
				Volume:      model.Float(10),
			},
			want: Assessment{MissingOrZeroAPY: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.pool, opts)
			assert.Equal(t, tt.want.ThinTVL, got.ThinTVL)
			assert.Equal(t, tt.want.VeryThinTVL, got.VeryThinTVL)
			assert.Equal(t, tt.want.MissingOrZeroAPY, got.MissingOrZeroAPY)
			assert.Equal(t, tt.want.MissingVolume, got.MissingVolume)
			assert.Equal(t, tt.want.MissingTVL, got.MissingTVL)
			assert.Equal(t, tt.want.UpstreamOutlier, got.UpstreamOutlier)
		})
	}
}

func TestWarnings_VeryThinSupersedesThin(t *testing.T) {
	pool := model.NormalizedPool{
		ID:          "p",
		TVL:         model.Float(50_000),
		ReportedAPY: model.Float(5),
		Volume:      model.Float(10),
	}

	warnings := Assess(pool, DefaultOptions()).Warnings()
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "very low TVL")
}

func TestWarnings_CleanPoolHasNone(t *testing.T) {
	pool := model.NormalizedPool{
		ID:          "p",
		TVL:         model.Float(1_000_000),
		ReportedAPY: model.Float(8),
		Volume:      model.Float(500),
	}

	assert.Empty(t, Assess(pool, DefaultOptions()).Warnings())
}

func TestWarnings_UpstreamOutlierSurfaces(t *testing.T) {
	pool := model.NormalizedPool{
		ID:          "p",
		TVL:         model.Float(1_000_000),
		ReportedAPY: model.Float(12.5),
		Volume:      model.Float(500),
		Outlier:     model.Bool(true),
	}

	warnings := Assess(pool, DefaultOptions()).Warnings()
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "outlier")
	assert.Contains(t, warnings[0], "cautious interpreting APY")
}

func TestFilterOutliers(t *testing.T) {
	mk := func(id string, apy float64) model.NormalizedPool {
		return model.NormalizedPool{ID: id, ReportedAPY: model.Float(apy), TVL: model.Float(1000)}
	}

	t.Run("extreme apy removed", func(t *testing.T) {
		pools := []model.NormalizedPool{
			mk("a", 5.0), mk("b", 5.2), mk("c", 4.8), mk("d", 5.1), mk("e", 300),
		}
		kept := FilterOutliers(pools, 1.5)
		assert.Len(t, kept, 4)
		for _, p := range kept {
			assert.NotEqual(t, "e", p.ID)
		}
	})

	t.Run("nil apy passes through", func(t *testing.T) {
		pools := []model.NormalizedPool{
			mk("a", 5.0), mk("b", 5.2), mk("c", 4.8), mk("d", 5.1),
			{ID: "noapy"},
		}
		kept := FilterOutliers(pools, 1.5)
		assert.Len(t, kept, 5)
	})

	t.Run("too few samples", func(t *testing.T) {
		pools := []model.NormalizedPool{mk("a", 1), mk("b", 900)}
		assert.Len(t, FilterOutliers(pools, 1.5), 2)
	})
}
