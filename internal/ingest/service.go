package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/energyflow/backend/internal/telemetry"
	"github.com/energyflow/backend/pkg/messaging"
)

// ErrUnknownDevice means the reporting device has no registered owner.
// Unowned telemetry is dropped: nothing could ever be billed against it.
var ErrUnknownDevice = errors.New("device is not registered")

// OwnerResolver checks whether a device belongs to anyone.
type OwnerResolver interface {
	OwnerOf(ctx context.Context, deviceID string) (string, bool, error)
}

// LiveSink stores the per-device live slot.
type LiveSink interface {
	SetLive(ctx context.Context, r telemetry.LiveReading) error
}

// HistoryRecorder records a reading in the time-series history. May be nil
// when history is disabled.
type HistoryRecorder interface {
	Record(ctx context.Context, r telemetry.LiveReading) error
}

// Publisher publishes platform events. May be nil when no broker is
// configured.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// Service accepts meter reports. The live slot write is the one mandatory
// effect; history and event publication are best effort and never fail the
// report, so a meter is not told to retry because a chart backend is down.
type Service struct {
	owners  OwnerResolver
	live    LiveSink
	history HistoryRecorder
	events  Publisher
	log     *zap.Logger
}

// NewService wires the ingestion service.
func NewService(owners OwnerResolver, live LiveSink, history HistoryRecorder, events Publisher, log *zap.Logger) *Service {
	return &Service{
		owners:  owners,
		live:    live,
		history: history,
		events:  events,
		log:     log,
	}
}

// Ingest validates and stores one reading.
func (s *Service) Ingest(ctx context.Context, r telemetry.LiveReading) error {
	if err := r.Validate(); err != nil {
		return err
	}

	_, owned, err := s.owners.OwnerOf(ctx, r.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to resolve device owner: %w", err)
	}
	if !owned {
		return ErrUnknownDevice
	}

	if err := s.live.SetLive(ctx, r); err != nil {
		return err
	}

	readingsTotal.WithLabelValues(r.DeviceID).Inc()

	if s.history != nil {
		if err := s.history.Record(ctx, r); err != nil {
			s.log.Warn("failed to record reading history",
				zap.String("device_id", r.DeviceID), zap.Error(err))
		}
	}

	if s.events != nil {
		ev := messaging.ReadingEvent{
			DeviceID:  r.DeviceID,
			Voltage:   r.Voltage,
			Power:     r.Power,
			EnergyKWh: r.EnergyKWh,
			Timestamp: r.Timestamp,
		}
		if err := s.events.Publish(ctx, messaging.SubjectTelemetryReading, ev); err != nil {
			s.log.Warn("failed to publish reading event",
				zap.String("device_id", r.DeviceID), zap.Error(err))
		}
	}

	return nil
}
