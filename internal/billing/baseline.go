package billing

// ResolveBaseline determines the reconciliation baseline from a user's
// ledger. An empty ledger yields the zero baseline; callers special-case the
// first-ever reading. Otherwise the baseline is the end of the period with
// the greatest ToTimestamp. The underlying store does not guarantee insertion
// order equals temporal order, so the maximum is taken here, not assumed.
//
// Periods with equal ToTimestamp should not occur, but if they do the one
// with the higher EnergyEnd wins, so the result is deterministic regardless
// of store ordering.
func ResolveBaseline(periods []BillingPeriod) Baseline {
	if len(periods) == 0 {
		return Baseline{}
	}

	best := periods[0]
	for _, p := range periods[1:] {
		if p.ToTimestamp > best.ToTimestamp ||
			(p.ToTimestamp == best.ToTimestamp && p.EnergyEnd > best.EnergyEnd) {
			best = p
		}
	}

	return Baseline{Energy: best.EnergyEnd, Timestamp: best.ToTimestamp}
}

// latestPeriod returns the period anchoring the baseline, using the same
// ordering as ResolveBaseline.
func latestPeriod(periods []BillingPeriod) (BillingPeriod, bool) {
	if len(periods) == 0 {
		return BillingPeriod{}, false
	}

	best := periods[0]
	for _, p := range periods[1:] {
		if p.ToTimestamp > best.ToTimestamp ||
			(p.ToTimestamp == best.ToTimestamp && p.EnergyEnd > best.EnergyEnd) {
			best = p
		}
	}
	return best, true
}

// tailSeq returns the highest sequence number in the ledger.
func tailSeq(periods []BillingPeriod) int64 {
	var max int64
	for _, p := range periods {
		if p.Seq > max {
			max = p.Seq
		}
	}
	return max
}
