package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var readingsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_readings_total",
		Help: "Accepted meter readings per device.",
	},
	[]string{"device_id"},
)
