package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/energyflow/backend/internal/tariff"
	"github.com/energyflow/backend/internal/telemetry"
	"github.com/energyflow/backend/pkg/lock"
	"github.com/energyflow/backend/pkg/messaging"
	"github.com/energyflow/backend/pkg/money"
)

// DeviceDirectory resolves the meter associated with a user.
type DeviceDirectory interface {
	DeviceForUser(ctx context.Context, userID string) (string, bool, error)
}

// LiveReader reads the live telemetry slot for a device. A nil reading with
// a nil error means the device has never reported.
type LiveReader interface {
	Live(ctx context.Context, deviceID string) (*telemetry.LiveReading, error)
}

// Publisher publishes platform events. Satisfied by *messaging.Client.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// Engine is the metering and billing reconciliation engine. It owns the
// read-resolve-append sequence that turns a cumulative meter counter into an
// append-only ledger of billing periods.
type Engine struct {
	ledger  LedgerStore
	devices DeviceDirectory
	live    LiveReader
	rates   tariff.Schedule
	locks   lock.Locker
	events  Publisher
	log     *zap.Logger
}

// NewEngine wires the engine. events may be nil when no broker is configured;
// commits then simply go unannounced.
func NewEngine(
	ledger LedgerStore,
	devices DeviceDirectory,
	live LiveReader,
	rates tariff.Schedule,
	locks lock.Locker,
	events Publisher,
	log *zap.Logger,
) *Engine {
	return &Engine{
		ledger:  ledger,
		devices: devices,
		live:    live,
		rates:   rates,
		locks:   locks,
		events:  events,
		log:     log,
	}
}

// GetLiveUsage returns the advisory usage snapshot for a user. Read-only; no
// locking, safe at any poll rate.
func (e *Engine) GetLiveUsage(ctx context.Context, userID string) (UsageSnapshot, error) {
	deviceID, ok, err := e.devices.DeviceForUser(ctx, userID)
	if err != nil {
		return UsageSnapshot{}, err
	}
	if !ok {
		return UsageSnapshot{}, ErrNoDeviceRegistered
	}

	live, err := e.live.Live(ctx, deviceID)
	if err != nil {
		return UsageSnapshot{}, err
	}

	periods, err := e.ledger.ListPeriods(ctx, userID)
	if err != nil {
		return UsageSnapshot{}, err
	}

	return ProjectUsage(live, periods), nil
}

// History returns the user's raw ledger. Store order; callers sort by to_ts
// if display order matters.
func (e *Engine) History(ctx context.Context, userID string) ([]BillingPeriod, error) {
	return e.ledger.ListPeriods(ctx, userID)
}

// CommitReading appends a new billing period anchored at the current live
// reading.
//
// The first-ever commit writes a zero-cost baseline period with
// energy_start == energy_end, anchoring all future deltas. Subsequent commits
// price the delta against the resolved baseline. A reading at the baseline's
// timestamp is rejected with ErrNoNewData, and a reading below the baseline's
// energy with ErrAnomalousReading; neither appends anything.
//
// The sequence runs under the per-user lock, and the ledger append is
// conditional on the sequence number observed while resolving the baseline,
// so a lost race surfaces as ErrConcurrentModification instead of a broken
// continuity chain. Different users never contend.
func (e *Engine) CommitReading(ctx context.Context, userID string) (*BillingPeriod, error) {
	release, err := e.locks.Acquire(ctx, "billing:"+userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire commit lock: %w", err)
	}
	defer release()

	period, err := e.commitLocked(ctx, userID)
	if err != nil {
		commitsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}
	commitsTotal.WithLabelValues("ok").Inc()

	if e.events != nil {
		ev := messaging.PeriodCommittedEvent{
			PeriodID:      period.ID,
			UserID:        period.UserID,
			Units:         period.Units,
			Amount:        period.Amount,
			FromTimestamp: period.FromTimestamp,
			ToTimestamp:   period.ToTimestamp,
		}
		if err := e.events.Publish(ctx, messaging.SubjectPeriodCommitted, ev); err != nil {
			e.log.Warn("failed to publish period committed event",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	return period, nil
}

func (e *Engine) commitLocked(ctx context.Context, userID string) (*BillingPeriod, error) {
	deviceID, ok, err := e.devices.DeviceForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoDeviceRegistered
	}

	live, err := e.live.Live(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if live == nil {
		return nil, ErrNoLiveData
	}

	periods, err := e.ledger.ListPeriods(ctx, userID)
	if err != nil {
		return nil, err
	}

	period := BillingPeriod{
		ID:        uuid.New(),
		UserID:    userID,
		Seq:       tailSeq(periods) + 1,
		CreatedAt: time.Now().UTC(),
	}

	if len(periods) == 0 {
		// First-ever reading: anchor the ledger with a zero-cost period.
		period.EnergyStart = live.EnergyKWh
		period.EnergyEnd = live.EnergyKWh
		period.FromTimestamp = live.Timestamp
		period.ToTimestamp = live.Timestamp
	} else {
		baseline := ResolveBaseline(periods)

		if live.Timestamp == baseline.Timestamp {
			return nil, ErrNoNewData
		}

		units := money.RoundUnits(live.EnergyKWh - baseline.Energy)
		if units < 0 {
			e.log.Warn("meter regression at commit",
				zap.String("user_id", userID),
				zap.String("device_id", deviceID),
				zap.Float64("baseline_kwh", baseline.Energy),
				zap.Float64("live_kwh", live.EnergyKWh),
			)
			return nil, ErrAnomalousReading
		}

		period.EnergyStart = baseline.Energy
		period.EnergyEnd = live.EnergyKWh
		period.FromTimestamp = baseline.Timestamp
		period.ToTimestamp = live.Timestamp
		period.Units = units
		period.Amount = e.rates.Cost(units)
	}

	if err := e.ledger.Append(ctx, period); err != nil {
		return nil, err
	}

	e.log.Info("billing period committed",
		zap.String("user_id", userID),
		zap.Int64("seq", period.Seq),
		zap.Float64("units", period.Units),
		zap.Float64("amount", period.Amount),
	)

	return &period, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoDeviceRegistered):
		return "no_device"
	case errors.Is(err, ErrNoLiveData):
		return "no_live_data"
	case errors.Is(err, ErrNoNewData):
		return "no_new_data"
	case errors.Is(err, ErrAnomalousReading):
		return "anomalous_reading"
	case errors.Is(err, ErrConcurrentModification):
		return "conflict"
	default:
		return "error"
	}
}
