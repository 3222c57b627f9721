package billing

import "context"

// LedgerStore is the append-only persistence for billing periods.
type LedgerStore interface {
	// ListPeriods returns every period for a user, in store order. Callers
	// needing temporal order sort on ToTimestamp (see ResolveBaseline).
	ListPeriods(ctx context.Context, userID string) ([]BillingPeriod, error)

	// Append inserts one immutable period. The store enforces uniqueness of
	// (user_id, seq); an append that lost a race to another commit returns
	// ErrConcurrentModification and writes nothing.
	Append(ctx context.Context, p BillingPeriod) error
}
