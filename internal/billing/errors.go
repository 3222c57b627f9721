package billing

import "errors"

var (
	// ErrNoDeviceRegistered means the user has no associated meter. User
	// correctable; not retryable as-is.
	ErrNoDeviceRegistered = errors.New("no device registered")

	// ErrNoLiveData means the user's device has never reported. Retryable
	// once the meter comes online.
	ErrNoLiveData = errors.New("no live data")

	// ErrNoNewData means the live reading's timestamp equals the current
	// baseline's: committing would record an empty duplicate period.
	ErrNoNewData = errors.New("no new telemetry since last bill")

	// ErrAnomalousReading means the live cumulative energy is below the
	// baseline. The committer refuses to record negative consumption.
	ErrAnomalousReading = errors.New("cumulative energy below billing baseline")

	// ErrConcurrentModification means another commit for the same user won
	// the append race. The caller retries the whole commit.
	ErrConcurrentModification = errors.New("concurrent ledger modification")
)
