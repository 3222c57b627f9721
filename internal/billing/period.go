package billing

import (
	"time"

	"github.com/google/uuid"
)

// BillingPeriod is one immutable entry in a user's billing ledger. EnergyStart
// and EnergyEnd are cumulative meter readings; Units is their delta rounded to
// 4 decimal places and Amount the tariff cost rounded to 2. Periods are
// created once by the committer and never updated or deleted.
//
// JSON and column names keep the original deployment's snake_case so existing
// device dashboards keep working against the new backend.
type BillingPeriod struct {
	ID            uuid.UUID `json:"id"`
	UserID        string    `json:"user_id"`
	Seq           int64     `json:"seq"`
	EnergyStart   float64   `json:"energy_start"`
	EnergyEnd     float64   `json:"energy_end"`
	FromTimestamp int64     `json:"from_ts"`
	ToTimestamp   int64     `json:"to_ts"`
	Units         float64   `json:"units"`
	Amount        float64   `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// Baseline marks the end of the last committed billing period: the cumulative
// energy reading and timestamp the next period's delta is measured against.
// The zero Baseline means "no period committed yet".
type Baseline struct {
	Energy    float64
	Timestamp int64
}

// UsageSnapshot is the advisory, display-only projection of live usage
// against the billing baseline. It is derived on every read and never stored.
type UsageSnapshot struct {
	Voltage        float64 `json:"voltage"`
	Power          float64 `json:"power"`
	EnergyKWh      float64 `json:"energy_kWh"`
	Timestamp      int64   `json:"timestamp"`
	UnitsUsed      float64 `json:"units_used"`
	LastBillAmount float64 `json:"last_bill_amount"`
}
