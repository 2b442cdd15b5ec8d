// Package model defines the core data structures for the lp-apy service.
package model

import (
	"time"
)

// RawPoolRecord is a single pool row exactly as the upstream yields API
// returned it. Field names and value types are untrusted; the normalize
// package is the only consumer that should read it directly.
type RawPoolRecord map[string]interface{}

// NormalizedPool is the validated internal representation of one pool.
// Numeric fields are pointers: nil means the upstream value was missing,
// non-numeric, or negative. A NormalizedPool never carries a negative
// number: bad values become nil during normalization, they are not
// clamped to zero.
type NormalizedPool struct {
	// ID is the upstream pool identifier, never empty
	ID string `json:"id"`

	// Chain, Project and Symbol are display metadata, empty when absent
	Chain   string `json:"chain,omitempty"`
	Project string `json:"project,omitempty"`
	Symbol  string `json:"symbol,omitempty"`

	// TVL is the total value locked in USD
	TVL *float64 `json:"tvl"`

	// ReportedAPY is the upstream-reported APY as a percentage
	ReportedAPY *float64 `json:"reportedApy"`

	// Volume is the trading volume in USD over the upstream's window;
	// absence is a valid, expected state
	Volume *float64 `json:"volume"`

	// IsThin is true when TVL is known and below the liquidity threshold
	IsThin bool `json:"isThin"`

	// Outlier is the upstream's own outlier flag; nil when the upstream
	// did not provide one
	Outlier *bool `json:"outlier,omitempty"`
}

// Basis tags which rule produced an ApyEstimate.
type Basis string

// Estimate bases, in decision order.
const (
	BasisReported          Basis = "reported"
	BasisDerivedFromVolume Basis = "derived-from-volume"
	BasisInsufficientData  Basis = "insufficient-data"
)

// ApyEstimate is the output of the estimator for one pool.
// Invariant: Value is nil if and only if Basis is BasisInsufficientData.
type ApyEstimate struct {
	// Value is the APY estimate as a percentage, nil when there is no
	// basis for estimation
	Value *float64 `json:"value"`

	// Basis names the rule that produced Value
	Basis Basis `json:"basis"`

	// Warnings are human-readable caveats, in the order they were raised
	Warnings []string `json:"warnings"`
}

// PoolSnapshot is one fetched upstream response: every raw pool row plus
// the time it was retrieved. The fetch layer caches the latest snapshot.
type PoolSnapshot struct {
	FetchedAt time.Time       `json:"fetchedAt"`
	Pools     []RawPoolRecord `json:"pools"`
}

// Float returns a pointer to v. Convenience for building pools in tests
// and for the coercion helpers.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
