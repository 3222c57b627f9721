package telemetry

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/energyflow/backend/pkg/circuit"
)

// HistoryWriter records every accepted reading as a time-series point in
// InfluxDB. History is advisory (charts, audits); writes go through a circuit
// breaker so an unhealthy InfluxDB cannot stall ingestion.
type HistoryWriter struct {
	writeAPI api.WriteAPIBlocking
	breaker  *circuit.Breaker
	log      *zap.Logger
}

// NewHistoryWriter creates a history writer on an InfluxDB client.
func NewHistoryWriter(client influxdb2.Client, org, bucket string, log *zap.Logger) *HistoryWriter {
	breaker := circuit.NewBreaker(circuit.Config{
		Name:        "influx-history",
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 3,
		OnStateChange: func(from, to circuit.State) {
			log.Warn("history breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &HistoryWriter{
		writeAPI: client.WriteAPIBlocking(org, bucket),
		breaker:  breaker,
		log:      log,
	}
}

// Record writes one reading as a meter_reading point, timestamped with the
// producer-supplied reading time.
func (w *HistoryWriter) Record(ctx context.Context, r LiveReading) error {
	point := influxdb2.NewPoint(
		"meter_reading",
		map[string]string{"device_id": r.DeviceID},
		map[string]interface{}{
			"voltage":    r.Voltage,
			"power":      r.Power,
			"energy_kwh": r.EnergyKWh,
		},
		time.Unix(r.Timestamp, 0).UTC(),
	)

	return w.breaker.Execute(ctx, func() error {
		return w.writeAPI.WritePoint(ctx, point)
	})
}
