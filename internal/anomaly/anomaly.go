package anomaly

import (
	"time"

	"github.com/google/uuid"
)

// Anomaly is one recorded meter regression. A cumulative energy counter
// never decreases on a healthy meter, so each row corresponds to a reset,
// a hardware swap, or bad firmware on one device.
type Anomaly struct {
	ID          uuid.UUID `json:"id"`
	DeviceID    string    `json:"device_id"`
	PreviousKWh float64   `json:"previous_kWh"`
	ReportedKWh float64   `json:"reported_kWh"`
	Timestamp   int64     `json:"timestamp"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
