package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveBaseline(t *testing.T) {
	t.Run("should return zero baseline for an empty ledger", func(t *testing.T) {
		b := ResolveBaseline(nil)
		assert.Equal(t, Baseline{}, b)
	})

	t.Run("should pick the period with the greatest to_ts", func(t *testing.T) {
		// Store order deliberately differs from temporal order.
		periods := []BillingPeriod{
			{EnergyEnd: 200, ToTimestamp: 2000},
			{EnergyEnd: 350, ToTimestamp: 3000},
			{EnergyEnd: 100, ToTimestamp: 1000},
		}

		b := ResolveBaseline(periods)
		assert.Equal(t, Baseline{Energy: 350, Timestamp: 3000}, b)
	})

	t.Run("should break to_ts ties on higher energy_end", func(t *testing.T) {
		periods := []BillingPeriod{
			{EnergyEnd: 120, ToTimestamp: 2000},
			{EnergyEnd: 150, ToTimestamp: 2000},
			{EnergyEnd: 130, ToTimestamp: 2000},
		}

		b := ResolveBaseline(periods)
		assert.Equal(t, Baseline{Energy: 150, Timestamp: 2000}, b)
	})
}

func TestTailSeq(t *testing.T) {
	assert.Equal(t, int64(0), tailSeq(nil))
	assert.Equal(t, int64(7), tailSeq([]BillingPeriod{{Seq: 3}, {Seq: 7}, {Seq: 5}}))
}
