package telemetry

import (
	"errors"
	"fmt"
)

// LiveReading is the most recent report from a metering device. EnergyKWh is
// a cumulative counter since the device's own epoch and is expected, but not
// guaranteed, to be monotonically non-decreasing. Timestamp is epoch seconds
// assigned by the producer, not by the server.
type LiveReading struct {
	DeviceID  string  `json:"device_id"`
	Voltage   float64 `json:"voltage"`
	Power     float64 `json:"power"`
	EnergyKWh float64 `json:"energy_kWh"`
	Timestamp int64   `json:"timestamp"`
}

var (
	ErrMissingDeviceID = errors.New("device_id is required")
	ErrBadTimestamp    = errors.New("timestamp must be positive")
)

// Validate rejects readings that can never be billed. Energy and power may
// legitimately be zero (idle meter); a negative cumulative counter cannot.
func (r LiveReading) Validate() error {
	if r.DeviceID == "" {
		return ErrMissingDeviceID
	}
	if r.Timestamp <= 0 {
		return ErrBadTimestamp
	}
	if r.EnergyKWh < 0 {
		return fmt.Errorf("energy_kWh must be non-negative, got %v", r.EnergyKWh)
	}
	return nil
}
