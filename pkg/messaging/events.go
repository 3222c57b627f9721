package messaging

import (
	"github.com/google/uuid"
)

// Subjects
const (
	SubjectTelemetryReading = "telemetry.reading"
	SubjectMeterAnomaly     = "telemetry.anomaly"
	SubjectPeriodCommitted  = "billing.period.committed"
)

// ReadingEvent is published by the ingestion service for every accepted
// meter report. Timestamps are producer-supplied epoch seconds.
type ReadingEvent struct {
	DeviceID  string  `json:"device_id"`
	Voltage   float64 `json:"voltage"`
	Power     float64 `json:"power"`
	EnergyKWh float64 `json:"energy_kWh"`
	Timestamp int64   `json:"timestamp"`
}

// AnomalyEvent is published when a device's cumulative energy counter
// regresses. Cumulative counters are monotonic on a healthy meter, so a
// regression means a reset, a swap, or bad firmware.
type AnomalyEvent struct {
	ID          uuid.UUID `json:"id"`
	DeviceID    string    `json:"device_id"`
	PreviousKWh float64   `json:"previous_kWh"`
	ReportedKWh float64   `json:"reported_kWh"`
	Timestamp   int64     `json:"timestamp"`
	Detail      string    `json:"detail,omitempty"`
}

// PeriodCommittedEvent is published after a billing period is appended to a
// user's ledger.
type PeriodCommittedEvent struct {
	PeriodID      uuid.UUID `json:"period_id"`
	UserID        string    `json:"user_id"`
	Units         float64   `json:"units"`
	Amount        float64   `json:"amount"`
	FromTimestamp int64     `json:"from_ts"`
	ToTimestamp   int64     `json:"to_ts"`
}
