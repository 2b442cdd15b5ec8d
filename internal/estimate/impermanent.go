package estimate

import (
	"math"

	"github.com/shopspring/decimal"
)

// ILRow is one price scenario in an impermanent-loss stress table.
type ILRow struct {
	// PriceMovePct is the relative price move of one asset, e.g. -25 for
	// a 25% drop
	PriceMovePct int `json:"priceMovePct"`

	// LossPct is impermanent loss versus holding, as a negative percentage
	LossPct decimal.Decimal `json:"lossPct"`

	// PositionValue is the LP position value under the scenario, rounded
	// to cents
	PositionValue decimal.Decimal `json:"positionValue"`

	// HodlValue is the value of simply holding the two assets
	HodlValue decimal.Decimal `json:"hodlValue"`
}

// ImpermanentLoss returns the loss fraction versus holding for a 50/50
// constant-product pool when one asset's price moves by the given ratio
// (1.0 = unchanged). The result is <= 0. Fee income is not modeled.
func ImpermanentLoss(priceRatio float64) float64 {
	if priceRatio <= 0 {
		return -1
	}
	return 2*math.Sqrt(priceRatio)/(1+priceRatio) - 1
}

// ImpermanentLossTable stress-tests a position for price moves from -50%
// to +50% in 5% steps.
func ImpermanentLossTable(position float64) []ILRow {
	pos := math.Max(position, 0)

	rows := make([]ILRow, 0, 21)
	for move := -50; move <= 50; move += 5 {
		ratio := 1 + float64(move)/100
		il := ImpermanentLoss(ratio)

		// Holding: half the position tracks the moved asset, half is stable.
		hodl := pos * (0.5 + 0.5*ratio)
		lp := hodl * (1 + il)

		rows = append(rows, ILRow{
			PriceMovePct:  move,
			LossPct:       decimal.NewFromFloat(il * 100).Round(2),
			PositionValue: decimal.NewFromFloat(lp).Round(2),
			HodlValue:     decimal.NewFromFloat(hodl).Round(2),
		})
	}
	return rows
}
