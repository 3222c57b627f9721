package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/energyflow/backend/internal/tariff"
	"github.com/energyflow/backend/internal/telemetry"
	"github.com/energyflow/backend/pkg/lock"
)

type fakeLedger struct {
	periods   []BillingPeriod
	appendErr error
}

func (f *fakeLedger) ListPeriods(_ context.Context, userID string) ([]BillingPeriod, error) {
	var out []BillingPeriod
	for _, p := range f.periods {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeLedger) Append(_ context.Context, p BillingPeriod) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.periods = append(f.periods, p)
	return nil
}

type fakeDirectory struct {
	devices map[string]string
}

func (f *fakeDirectory) DeviceForUser(_ context.Context, userID string) (string, bool, error) {
	d, ok := f.devices[userID]
	return d, ok, nil
}

type fakeLive struct {
	readings map[string]*telemetry.LiveReading
}

func (f *fakeLive) Live(_ context.Context, deviceID string) (*telemetry.LiveReading, error) {
	return f.readings[deviceID], nil
}

func newTestEngine(ledger *fakeLedger, live *fakeLive) *Engine {
	dir := &fakeDirectory{devices: map[string]string{"alice": "meter-1"}}
	return NewEngine(ledger, dir, live, tariff.Default(), lock.NewKeyLocker(), nil, zap.NewNop())
}

func TestCommitReadingFirstEver(t *testing.T) {
	ledger := &fakeLedger{}
	live := &fakeLive{readings: map[string]*telemetry.LiveReading{
		"meter-1": {DeviceID: "meter-1", EnergyKWh: 12.5, Timestamp: 1000},
	}}
	e := newTestEngine(ledger, live)

	p, err := e.CommitReading(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, 12.5, p.EnergyStart)
	assert.Equal(t, 12.5, p.EnergyEnd)
	assert.Equal(t, int64(1000), p.FromTimestamp)
	assert.Equal(t, int64(1000), p.ToTimestamp)
	assert.Equal(t, 0.0, p.Units)
	assert.Equal(t, 0.0, p.Amount)
	assert.Equal(t, int64(1), p.Seq)
	assert.Len(t, ledger.periods, 1)
}

func TestCommitReadingContinuity(t *testing.T) {
	ledger := &fakeLedger{}
	live := &fakeLive{readings: map[string]*telemetry.LiveReading{
		"meter-1": {DeviceID: "meter-1", EnergyKWh: 12.5, Timestamp: 1000},
	}}
	e := newTestEngine(ledger, live)

	p1, err := e.CommitReading(context.Background(), "alice")
	require.NoError(t, err)

	live.readings["meter-1"] = &telemetry.LiveReading{
		DeviceID: "meter-1", EnergyKWh: 362.5, Timestamp: 2000,
	}

	p2, err := e.CommitReading(context.Background(), "alice")
	require.NoError(t, err)

	// Continuity invariant: consecutive periods chain exactly.
	assert.Equal(t, p1.EnergyEnd, p2.EnergyStart)
	assert.Equal(t, p1.ToTimestamp, p2.FromTimestamp)

	assert.Equal(t, 350.0, p2.Units)
	assert.Equal(t, 900.0, p2.Amount)
	assert.Equal(t, int64(2), p2.Seq)
}

func TestCommitReadingNoDevice(t *testing.T) {
	e := newTestEngine(&fakeLedger{}, &fakeLive{})

	_, err := e.CommitReading(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNoDeviceRegistered)
}

func TestCommitReadingNoLiveData(t *testing.T) {
	e := newTestEngine(&fakeLedger{}, &fakeLive{readings: map[string]*telemetry.LiveReading{}})

	_, err := e.CommitReading(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNoLiveData)
}

func TestCommitReadingNoNewData(t *testing.T) {
	ledger := &fakeLedger{}
	live := &fakeLive{readings: map[string]*telemetry.LiveReading{
		"meter-1": {DeviceID: "meter-1", EnergyKWh: 12.5, Timestamp: 1000},
	}}
	e := newTestEngine(ledger, live)

	_, err := e.CommitReading(context.Background(), "alice")
	require.NoError(t, err)

	// Same telemetry again: a second commit must not grow the ledger.
	_, err = e.CommitReading(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNoNewData)
	assert.Len(t, ledger.periods, 1)
}

func TestCommitReadingAnomalousRegression(t *testing.T) {
	ledger := &fakeLedger{}
	live := &fakeLive{readings: map[string]*telemetry.LiveReading{
		"meter-1": {DeviceID: "meter-1", EnergyKWh: 500, Timestamp: 1000},
	}}
	e := newTestEngine(ledger, live)

	_, err := e.CommitReading(context.Background(), "alice")
	require.NoError(t, err)

	// Counter went backwards: the commit is refused, not recorded as zero.
	live.readings["meter-1"] = &telemetry.LiveReading{
		DeviceID: "meter-1", EnergyKWh: 480, Timestamp: 2000,
	}

	_, err = e.CommitReading(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrAnomalousReading)
	assert.Len(t, ledger.periods, 1)
}

func TestCommitReadingConflictPassthrough(t *testing.T) {
	ledger := &fakeLedger{appendErr: ErrConcurrentModification}
	live := &fakeLive{readings: map[string]*telemetry.LiveReading{
		"meter-1": {DeviceID: "meter-1", EnergyKWh: 12.5, Timestamp: 1000},
	}}
	e := newTestEngine(ledger, live)

	_, err := e.CommitReading(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestGetLiveUsage(t *testing.T) {
	t.Run("should error when no device is registered", func(t *testing.T) {
		e := newTestEngine(&fakeLedger{}, &fakeLive{})

		_, err := e.GetLiveUsage(context.Background(), "nobody")
		assert.ErrorIs(t, err, ErrNoDeviceRegistered)
	})

	t.Run("should return a zero snapshot before the first report", func(t *testing.T) {
		e := newTestEngine(&fakeLedger{}, &fakeLive{readings: map[string]*telemetry.LiveReading{}})

		snap, err := e.GetLiveUsage(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, UsageSnapshot{}, snap)
	})

	t.Run("should project usage against the committed baseline", func(t *testing.T) {
		ledger := &fakeLedger{}
		live := &fakeLive{readings: map[string]*telemetry.LiveReading{
			"meter-1": {DeviceID: "meter-1", EnergyKWh: 12.5, Timestamp: 1000},
		}}
		e := newTestEngine(ledger, live)

		_, err := e.CommitReading(context.Background(), "alice")
		require.NoError(t, err)

		live.readings["meter-1"] = &telemetry.LiveReading{
			DeviceID: "meter-1", Voltage: 231, Power: 800, EnergyKWh: 100, Timestamp: 1500,
		}

		snap, err := e.GetLiveUsage(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, 87.5, snap.UnitsUsed)
		assert.Equal(t, 0.0, snap.LastBillAmount)
	})
}
