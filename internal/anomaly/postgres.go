package anomaly

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists anomalies in the meter_anomalies table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wires a Postgres-backed anomaly store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert records one anomaly.
func (s *PostgresStore) Insert(ctx context.Context, a Anomaly) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meter_anomalies (id, device_id, previous_kwh, reported_kwh, reading_ts, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.DeviceID, a.PreviousKWh, a.ReportedKWh, a.Timestamp, a.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert anomaly: %w", err)
	}
	return nil
}

// Recent returns up to limit anomalies, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Anomaly, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, previous_kwh, reported_kwh, reading_ts, detail, created_at
		FROM meter_anomalies
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer rows.Close()

	var out []Anomaly
	for rows.Next() {
		var a Anomaly
		if err := rows.Scan(&a.ID, &a.DeviceID, &a.PreviousKWh, &a.ReportedKWh,
			&a.Timestamp, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
