// Package quality provides data-quality heuristics for normalized pools:
// per-pool warning assessments and statistical outlier detection across a
// snapshot.
package quality

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/lp-apy/internal/model"
)

// Options holds configuration for quality assessment.
type Options struct {
	// ThinTVL is the TVL in USD below which a pool is considered thin
	ThinTVL float64

	// VeryThinTVL marks the stronger warning tier
	VeryThinTVL float64

	// EnableOutlierDetection enables IQR-based outlier filtering
	EnableOutlierDetection bool

	// OutlierIQRMultiplier defines the fence width (1.5 is standard)
	OutlierIQRMultiplier float64
}

// DefaultOptions returns sensible defaults for quality assessment.
func DefaultOptions() Options {
	return Options{
		ThinTVL:                250_000,
		VeryThinTVL:            100_000,
		EnableOutlierDetection: true,
		OutlierIQRMultiplier:   1.5,
	}
}

// Assessment summarizes data-quality findings for one pool.
type Assessment struct {
	ThinTVL          bool `json:"thinTvl"`
	VeryThinTVL      bool `json:"veryThinTvl"`
	MissingOrZeroAPY bool `json:"missingOrZeroApy"`
	MissingVolume    bool `json:"missingVolume"`
	MissingTVL       bool `json:"missingTvl"`
	UpstreamOutlier  bool `json:"upstreamOutlier"`

	tvl float64
}

// Assess evaluates quality heuristics for a single pool.
func Assess(pool model.NormalizedPool, opts Options) Assessment {
	a := Assessment{
		MissingOrZeroAPY: pool.ReportedAPY == nil || *pool.ReportedAPY <= 0,
		MissingVolume:    pool.Volume == nil,
		MissingTVL:       pool.TVL == nil,
		UpstreamOutlier:  pool.Outlier != nil && *pool.Outlier,
	}

	if pool.TVL != nil {
		a.tvl = *pool.TVL
		a.VeryThinTVL = *pool.TVL < opts.VeryThinTVL
		a.ThinTVL = *pool.TVL < opts.ThinTVL
	}

	return a
}

// Warnings renders the assessment as user-facing warning strings. The
// very-thin warning supersedes the thin one.
func (a Assessment) Warnings() []string {
	var warnings []string

	if a.MissingOrZeroAPY {
		warnings = append(warnings, "APY is missing or zero for this pool; projections may be meaningless.")
	}

	switch {
	case a.VeryThinTVL:
		warnings = append(warnings, fmt.Sprintf(
			"very low TVL (~$%.0f); small pools can have unstable APY and higher execution risk.", a.tvl))
	case a.ThinTVL:
		warnings = append(warnings, fmt.Sprintf(
			"low TVL (~$%.0f); treat APY as noisier than large pools.", a.tvl))
	}

	if a.MissingTVL {
		warnings = append(warnings, "TVL is unavailable for this pool; liquidity cannot be assessed.")
	}

	if a.MissingVolume {
		warnings = append(warnings, "volume is unavailable for this pool; volume-based estimates are skipped.")
	}

	if a.UpstreamOutlier {
		warnings = append(warnings, "the upstream aggregator flags this pool as an outlier; be cautious interpreting APY.")
	}

	return warnings
}

// FilterOutliers removes pools whose reported APY falls outside the IQR
// fence computed over the snapshot. Pools without a reported APY pass
// through untouched; at least four reported APYs are needed for the fence
// to be meaningful.
func FilterOutliers(pools []model.NormalizedPool, iqrMultiplier float64) []model.NormalizedPool {
	apys := make([]float64, 0, len(pools))
	for _, p := range pools {
		if p.ReportedAPY != nil {
			apys = append(apys, *p.ReportedAPY)
		}
	}
	if len(apys) < 4 {
		return pools
	}

	sort.Float64s(apys)
	q1 := apys[len(apys)/4]
	q3 := apys[len(apys)*3/4]
	iqr := q3 - q1

	lower := q1 - iqrMultiplier*iqr
	upper := q3 + iqrMultiplier*iqr

	kept := make([]model.NormalizedPool, 0, len(pools))
	for _, p := range pools {
		if p.ReportedAPY != nil && (*p.ReportedAPY < lower || *p.ReportedAPY > upper) {
			logrus.WithFields(logrus.Fields{
				"pool":   p.ID,
				"apy":    *p.ReportedAPY,
				"bounds": []float64{lower, upper},
			}).Info("Filtered outlier pool")
			continue
		}
		kept = append(kept, p)
	}

	logrus.WithFields(logrus.Fields{
		"total":    len(pools),
		"filtered": len(pools) - len(kept),
	}).Debug("Outlier filtering complete")

	return kept
}
