package pricing

import (
	"github.com/shopspring/decimal"

	"bullion/internal/metal"
)

var (
	gramsPerOunce = decimal.RequireFromString(metal.GramsPerTroyOunce)
	perMille      = decimal.NewFromInt(1000)
	one           = decimal.NewFromInt(1)
	hundred       = decimal.NewFromInt(100)
)

// trendThreshold is the percent move beyond which a price is RISING or FALLING.
var trendThreshold = decimal.RequireFromString("0.5")

// priceScale is the number of decimals kept on a per-gram price.
const priceScale = 4

// PerGram converts a troy-ounce spot price into a per-gram price at the given
// purity, net of the commercial margin. Rounding happens once, after the margin.
func PerGram(spotPerOunce decimal.Decimal, purity metal.Purity, margin decimal.Decimal) decimal.Decimal {
	fineness := decimal.NewFromInt(int64(purity)).Div(perMille)
	return spotPerOunce.
		Div(gramsPerOunce).
		Mul(fineness).
		Mul(one.Sub(margin)).
		Round(priceScale)
}

// CompareTrend classifies the move from previous to current. Moves within
// half a percent either way are STABLE; a missing or zero previous price is
// treated as equal to the current one.
func CompareTrend(current decimal.Decimal, previous *decimal.Decimal) Trend {
	if previous == nil || previous.IsZero() {
		return Trend{
			PreviousPrice: current,
			AbsoluteDelta: decimal.Zero,
			PercentDelta:  decimal.Zero,
			Label:         TrendStable,
		}
	}
	delta := current.Sub(*previous)
	pct := delta.Div(*previous).Mul(hundred)

	label := TrendStable
	if pct.Abs().GreaterThan(trendThreshold) {
		if pct.IsPositive() {
			label = TrendRising
		} else {
			label = TrendFalling
		}
	}
	return Trend{
		PreviousPrice: *previous,
		AbsoluteDelta: delta.Round(priceScale),
		PercentDelta:  pct.Round(2),
		Label:         label,
	}
}
