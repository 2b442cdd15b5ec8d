// Package stats computes descriptive statistics across a normalized pool
// snapshot for the summary endpoint.
package stats

import (
	"math"
	"sort"

	"github.com/yourorg/lp-apy/internal/model"
)

// Summary describes one snapshot of pools in aggregate.
type Summary struct {
	// PoolCount is the number of normalized pools in the snapshot
	PoolCount int `json:"poolCount"`

	// TVLTotal is the summed TVL in USD over pools with known TVL
	TVLTotal float64 `json:"tvlTotal"`

	// WeightedAPY is the TVL-weighted mean of reported APYs, zero when
	// no pool carries both figures
	WeightedAPY float64 `json:"weightedApy"`

	// MedianAPY is the median reported APY
	MedianAPY float64 `json:"medianApy"`

	// ThinCount is the number of pools below the liquidity threshold
	ThinCount int `json:"thinCount"`

	// EstimableCount is the number of pools for which some estimate
	// basis exists: a reported APY, or volume plus a positive TVL
	EstimableCount int `json:"estimableCount"`
}

// Summarize computes aggregate statistics over a snapshot. Pools missing a
// field simply do not contribute to the statistics that need it.
func Summarize(pools []model.NormalizedPool) Summary {
	s := Summary{PoolCount: len(pools)}

	var weightedSum, weightTotal float64
	apys := make([]float64, 0, len(pools))

	for _, p := range pools {
		if p.IsThin {
			s.ThinCount++
		}
		if p.TVL != nil {
			s.TVLTotal += *p.TVL
		}
		if estimable(p) {
			s.EstimableCount++
		}
		if p.ReportedAPY != nil {
			apys = append(apys, *p.ReportedAPY)
			if p.TVL != nil && *p.TVL > 0 {
				weightedSum += *p.ReportedAPY * *p.TVL
				weightTotal += *p.TVL
			}
		}
	}

	if weightTotal > 0 && !math.IsNaN(weightedSum) {
		s.WeightedAPY = weightedSum / weightTotal
	}
	s.MedianAPY = median(apys)

	return s
}

// MedianAPY returns the median reported APY of the given pools, zero when
// none report one. The guard package uses it to detect snapshot-wide jumps.
func MedianAPY(pools []model.NormalizedPool) float64 {
	apys := make([]float64, 0, len(pools))
	for _, p := range pools {
		if p.ReportedAPY != nil {
			apys = append(apys, *p.ReportedAPY)
		}
	}
	return median(apys)
}

// estimable reports whether an APY estimate can be produced for the pool:
// either a reported APY exists, or volume alongside a positive TVL allows a
// fee-derived one.
func estimable(p model.NormalizedPool) bool {
	if p.ReportedAPY != nil {
		return true
	}
	return p.Volume != nil && p.TVL != nil && *p.TVL > 0
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	n := len(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}
