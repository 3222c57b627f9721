package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// PostgresLedger is the Postgres-backed LedgerStore. The unique
// (user_id, seq) index doubles as the conditional-append primitive: a commit
// computes its sequence number from the ledger it read, so two commits racing
// on the same baseline collide on seq and exactly one wins.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a ledger store on an open database handle.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// ListPeriods returns all periods for a user ordered by to_ts.
func (l *PostgresLedger) ListPeriods(ctx context.Context, userID string) ([]BillingPeriod, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, user_id, seq, energy_start, energy_end, from_ts, to_ts, units, amount, created_at
		 FROM billing_periods WHERE user_id = $1 ORDER BY to_ts`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing periods: %w", err)
	}
	defer rows.Close()

	var periods []BillingPeriod
	for rows.Next() {
		var p BillingPeriod
		err := rows.Scan(&p.ID, &p.UserID, &p.Seq, &p.EnergyStart, &p.EnergyEnd,
			&p.FromTimestamp, &p.ToTimestamp, &p.Units, &p.Amount, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing period: %w", err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read billing periods: %w", err)
	}

	return periods, nil
}

// Append inserts one period. A (user_id, seq) conflict maps to
// ErrConcurrentModification.
func (l *PostgresLedger) Append(ctx context.Context, p BillingPeriod) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO billing_periods
		 (id, user_id, seq, energy_start, energy_end, from_ts, to_ts, units, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.UserID, p.Seq, p.EnergyStart, p.EnergyEnd,
		p.FromTimestamp, p.ToTimestamp, p.Units, p.Amount, p.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrConcurrentModification
		}
		return fmt.Errorf("failed to append billing period: %w", err)
	}

	return nil
}
