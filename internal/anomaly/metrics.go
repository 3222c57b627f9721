package anomaly

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var regressionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "meter_regressions_total",
		Help: "Detected cumulative energy counter regressions per device.",
	},
	[]string{"device_id"},
)
