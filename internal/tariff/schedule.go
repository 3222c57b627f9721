package tariff

import (
	"github.com/shopspring/decimal"

	"github.com/energyflow/backend/pkg/money"
)

// Band is one tier of a marginal-rate schedule. Units strictly above
// Threshold are billed at Rate, up to Cap units in the band; Cap 0 means the
// band is uncapped.
type Band struct {
	Threshold float64
	Cap       float64
	Rate      float64
}

// Schedule is a tiered consumption-rate table. Band costs are marginal: each
// band prices only the portion of consumption that falls inside it.
type Schedule struct {
	bands []Band
}

// NewSchedule builds a schedule from bands ordered by ascending threshold.
func NewSchedule(bands []Band) Schedule {
	return Schedule{bands: bands}
}

// Default returns the residential schedule: the first 100 units are free,
// then 2.25/unit up to 200, 4.50/unit up to 500, and 6.60/unit above that.
func Default() Schedule {
	return NewSchedule([]Band{
		{Threshold: 100, Cap: 100, Rate: 2.25},
		{Threshold: 200, Cap: 300, Rate: 4.50},
		{Threshold: 500, Cap: 0, Rate: 6.60},
	})
}

// Cost computes the monetary cost of consuming units under the schedule,
// rounded to 2 decimal places, half away from zero. Cost is pure and
// deterministic.
//
// Precondition: units >= 0. Callers clamp or reject negative deltas before
// pricing; Cost does not defend against negative input.
func (s Schedule) Cost(units float64) float64 {
	u := decimal.NewFromFloat(units)
	total := decimal.Zero

	for _, b := range s.bands {
		threshold := decimal.NewFromFloat(b.Threshold)
		if u.LessThanOrEqual(threshold) {
			continue
		}

		portion := u.Sub(threshold)
		if b.Cap > 0 {
			cap := decimal.NewFromFloat(b.Cap)
			if portion.GreaterThan(cap) {
				portion = cap
			}
		}

		total = total.Add(portion.Mul(decimal.NewFromFloat(b.Rate)))
	}

	return money.RoundAmountDecimal(total)
}
