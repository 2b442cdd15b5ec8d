package estimate

import (
	"math"

	"github.com/shopspring/decimal"
)

// Milestone days shown in growth tables, clipped to the horizon.
var milestones = []int{1, 7, 14, 30, 60, 90, 180, 365}

// GrowthRow is one milestone of a position projection. Money columns are
// rounded to cents.
type GrowthRow struct {
	Day        int             `json:"day"`
	StartValue decimal.Decimal `json:"startValue"`
	EndValue   decimal.Decimal `json:"endValue"`
	Profit     decimal.Decimal `json:"profit"`
}

// DailyRate converts an APY percentage to a daily rate. Compounded uses
// (1+apy)^(1/365)-1, simple uses apy/365. Negative APY is floored at zero.
func DailyRate(apyPercent float64, compounded bool) float64 {
	apy := math.Max(apyPercent, 0) / 100
	if compounded {
		return math.Pow(1+apy, 1.0/365) - 1
	}
	return apy / 365
}

// ProjectedValue returns the position value after the given number of days
// at the given APY. Negative inputs are floored at zero.
func ProjectedValue(position, apyPercent float64, days int, compounded bool) float64 {
	pos := math.Max(position, 0)
	d := float64(max(days, 0))

	r := DailyRate(apyPercent, compounded)
	if compounded {
		return pos * math.Pow(1+r, d)
	}
	return pos * (1 + r*d)
}

// GrowthTable projects a position at key milestones up to horizonDays.
// The horizon itself is always the last row.
func GrowthTable(position, apyPercent float64, horizonDays int, compounded bool) []GrowthRow {
	horizon := max(horizonDays, 1)

	days := make([]int, 0, len(milestones)+1)
	for _, m := range milestones {
		if m < horizon {
			days = append(days, m)
		}
	}
	days = append(days, horizon)

	start := decimal.NewFromFloat(math.Max(position, 0)).Round(2)
	rows := make([]GrowthRow, 0, len(days))
	for _, d := range days {
		end := decimal.NewFromFloat(ProjectedValue(position, apyPercent, d, compounded)).Round(2)
		rows = append(rows, GrowthRow{
			Day:        d,
			StartValue: start,
			EndValue:   end,
			Profit:     end.Sub(start),
		})
	}
	return rows
}
