// Package estimate derives display-ready APY figures from normalized pool
// records, disclosing the basis and caveats for every number it produces.
package estimate

import (
	"math"

	"github.com/yourorg/lp-apy/internal/model"
)

// Warning texts surfaced alongside estimates. The display layer shows them
// verbatim, so they are written for end users.
const (
	WarnThinPool     = "pool TVL below liquidity threshold; reported APY may be unreliable for thin pools."
	WarnDerived      = "APY derived from volume, not directly reported; treat as an estimate."
	WarnInsufficient = "insufficient data to estimate APY for this pool."
)

// Estimator holds the parameters of the volume-derived fallback. The zero
// value is not usable; construct with Default or from config.
type Estimator struct {
	// FeeRate is the assumed LP fee share of volume, e.g. 0.003 for the
	// 30 bps v2 AMM convention
	FeeRate float64

	// VolumeWindowDays is the window the upstream volume figure covers
	VolumeWindowDays float64
}

// Default returns an Estimator with the 30 bps fee convention over the
// upstream's 7-day volume window.
func Default() Estimator {
	return Estimator{FeeRate: 0.003, VolumeWindowDays: 7}
}

// Estimate produces an APY estimate for one pool. The decision rules are
// evaluated in order and the first match wins:
//
//  1. reported APY present, pool not thin  -> reported, no warnings
//  2. reported APY present, pool thin      -> reported, thin-pool warning
//  3. no reported APY, volume and positive TVL present -> derived fee yield
//  4. otherwise -> insufficient data, nil value
//
// Pure and idempotent: the same pool always yields an identical estimate.
func (e Estimator) Estimate(pool model.NormalizedPool) model.ApyEstimate {
	switch {
	case pool.ReportedAPY != nil && !pool.IsThin:
		return model.ApyEstimate{
			Value:    model.Float(*pool.ReportedAPY),
			Basis:    model.BasisReported,
			Warnings: []string{},
		}

	case pool.ReportedAPY != nil && pool.IsThin:
		return model.ApyEstimate{
			Value:    model.Float(*pool.ReportedAPY),
			Basis:    model.BasisReported,
			Warnings: []string{WarnThinPool},
		}

	case pool.Volume != nil && pool.TVL != nil && *pool.TVL > 0:
		value := e.feeYield(*pool.Volume, *pool.TVL)
		// A negative or non-finite result here is a computation bug,
		// surfaced as insufficient data rather than displayed.
		if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
			return insufficient()
		}
		warnings := []string{WarnDerived}
		if pool.IsThin {
			warnings = append(warnings, WarnThinPool)
		}
		return model.ApyEstimate{
			Value:    model.Float(value),
			Basis:    model.BasisDerivedFromVolume,
			Warnings: warnings,
		}

	default:
		return insufficient()
	}
}

// feeYield annualizes the fee income implied by the volume window:
// (volume/windowDays) * feeRate * 365 / tvl, as a percentage. The caller
// guarantees tvl > 0.
func (e Estimator) feeYield(volume, tvl float64) float64 {
	days := e.VolumeWindowDays
	if days <= 0 {
		days = 1
	}
	dailyFees := volume / days * e.FeeRate
	return dailyFees * 365 / tvl * 100
}

func insufficient() model.ApyEstimate {
	return model.ApyEstimate{
		Value:    nil,
		Basis:    model.BasisInsufficientData,
		Warnings: []string{WarnInsufficient},
	}
}
