package billing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// usageRegressionsTotal counts live projections whose raw baseline delta
	// was negative. The snapshot floors the value to 0 for display; this
	// counter keeps the anomaly visible instead of silently swallowed.
	usageRegressionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_usage_regressions_total",
			Help: "Live usage projections where cumulative energy was below the billing baseline.",
		},
	)

	commitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_commits_total",
			Help: "Billing period commit attempts by outcome.",
		},
		[]string{"outcome"},
	)
)
