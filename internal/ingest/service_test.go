package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/energyflow/backend/internal/telemetry"
	"github.com/energyflow/backend/pkg/messaging"
)

type fakeOwners struct {
	owners map[string]string
}

func (f *fakeOwners) OwnerOf(_ context.Context, deviceID string) (string, bool, error) {
	o, ok := f.owners[deviceID]
	return o, ok, nil
}

type fakeSink struct {
	stored []telemetry.LiveReading
	err    error
}

func (f *fakeSink) SetLive(_ context.Context, r telemetry.LiveReading) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, r)
	return nil
}

type fakeRecorder struct {
	recorded int
	err      error
}

func (f *fakeRecorder) Record(_ context.Context, _ telemetry.LiveReading) error {
	f.recorded++
	return f.err
}

type fakePublisher struct {
	subjects []string
	payloads []interface{}
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data interface{}) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func validReading() telemetry.LiveReading {
	return telemetry.LiveReading{
		DeviceID:  "meter-1",
		Voltage:   230,
		Power:     950,
		EnergyKWh: 120.5,
		Timestamp: 1700000000,
	}
}

func TestIngest(t *testing.T) {
	owners := &fakeOwners{owners: map[string]string{"meter-1": "alice"}}

	t.Run("should store the live slot and publish the event", func(t *testing.T) {
		sink := &fakeSink{}
		rec := &fakeRecorder{}
		pub := &fakePublisher{}
		s := NewService(owners, sink, rec, pub, zap.NewNop())

		err := s.Ingest(context.Background(), validReading())
		require.NoError(t, err)

		require.Len(t, sink.stored, 1)
		assert.Equal(t, 1, rec.recorded)
		require.Len(t, pub.subjects, 1)
		assert.Equal(t, messaging.SubjectTelemetryReading, pub.subjects[0])

		ev, ok := pub.payloads[0].(messaging.ReadingEvent)
		require.True(t, ok)
		assert.Equal(t, "meter-1", ev.DeviceID)
		assert.Equal(t, 120.5, ev.EnergyKWh)
	})

	t.Run("should reject an unregistered device", func(t *testing.T) {
		sink := &fakeSink{}
		s := NewService(owners, sink, nil, nil, zap.NewNop())

		r := validReading()
		r.DeviceID = "stranger"

		err := s.Ingest(context.Background(), r)
		assert.ErrorIs(t, err, ErrUnknownDevice)
		assert.Empty(t, sink.stored)
	})

	t.Run("should reject an invalid reading", func(t *testing.T) {
		s := NewService(owners, &fakeSink{}, nil, nil, zap.NewNop())

		r := validReading()
		r.Timestamp = 0

		err := s.Ingest(context.Background(), r)
		assert.ErrorIs(t, err, telemetry.ErrBadTimestamp)
	})

	t.Run("should not fail the report when history is down", func(t *testing.T) {
		sink := &fakeSink{}
		rec := &fakeRecorder{err: errors.New("influx down")}
		s := NewService(owners, sink, rec, nil, zap.NewNop())

		err := s.Ingest(context.Background(), validReading())
		assert.NoError(t, err)
		assert.Len(t, sink.stored, 1)
	})

	t.Run("should fail the report when the live slot write fails", func(t *testing.T) {
		sink := &fakeSink{err: errors.New("redis down")}
		s := NewService(owners, sink, nil, nil, zap.NewNop())

		err := s.Ingest(context.Background(), validReading())
		assert.Error(t, err)
	})
}
