package money

import "github.com/shopspring/decimal"

// Energy deltas are persisted with 4 decimal places, currency amounts with 2.
// All rounding in the billing path goes through these helpers so the rule is
// applied in exactly one place: round half away from zero, as implemented by
// decimal.Decimal.Round.
const (
	UnitPlaces   = 4
	AmountPlaces = 2
)

// RoundUnits rounds an energy delta (kWh) to 4 decimal places.
func RoundUnits(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(UnitPlaces).Float64()
	return f
}

// RoundAmount rounds a currency amount to 2 decimal places.
func RoundAmount(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(AmountPlaces).Float64()
	return f
}

// RoundAmountDecimal rounds a decimal currency amount to 2 decimal places
// and returns it as float64 for persistence and wire compatibility.
func RoundAmountDecimal(d decimal.Decimal) float64 {
	f, _ := d.Round(AmountPlaces).Float64()
	return f
}
