package billing

import (
	"github.com/energyflow/backend/internal/telemetry"
	"github.com/energyflow/backend/pkg/money"
)

// ProjectUsage derives the display snapshot of units used since the last
// bill. It performs no writes and is safe to call on every client poll,
// concurrently with a commit for the same user (it then observes either the
// pre- or post-commit baseline, both acceptable for advisory data).
//
// A nil live reading means the device has never reported; the snapshot is
// all zero rather than an error. A negative raw delta (meter reset, baseline
// inconsistency) is floored to 0 for display but counted in
// billing_usage_regressions_total so the condition stays observable.
func ProjectUsage(live *telemetry.LiveReading, periods []BillingPeriod) UsageSnapshot {
	if live == nil {
		return UsageSnapshot{}
	}

	baseline := ResolveBaseline(periods)

	unitsUsed := money.RoundUnits(live.EnergyKWh - baseline.Energy)
	if unitsUsed < 0 {
		usageRegressionsTotal.Inc()
		unitsUsed = 0
	}

	var lastAmount float64
	if last, ok := latestPeriod(periods); ok {
		lastAmount = last.Amount
	}

	return UsageSnapshot{
		Voltage:        live.Voltage,
		Power:          live.Power,
		EnergyKWh:      live.EnergyKWh,
		Timestamp:      live.Timestamp,
		UnitsUsed:      unitsUsed,
		LastBillAmount: lastAmount,
	}
}
