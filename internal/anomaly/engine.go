package anomaly

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/energyflow/backend/pkg/messaging"
)

// Store persists detected anomalies.
type Store interface {
	Insert(ctx context.Context, a Anomaly) error
	Recent(ctx context.Context, limit int) ([]Anomaly, error)
}

// Publisher publishes platform events. May be nil.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// Subscriber delivers telemetry events to the worker.
type Subscriber interface {
	QueueSubscribe(subject, queue string, handler func(msg *nats.Msg)) error
}

// Engine watches the telemetry stream and flags devices whose cumulative
// energy counter moves backwards. The committer separately refuses to bill
// such readings; the engine exists so operators see the regression when it
// happens, not when the next bill is attempted.
type Engine struct {
	store  Store
	events Publisher
	log    *zap.Logger

	mu   sync.Mutex
	last map[string]float64
}

// NewEngine wires the anomaly detection engine.
func NewEngine(store Store, events Publisher, log *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		events: events,
		log:    log,
		last:   make(map[string]float64),
	}
}

// Start subscribes the engine to the telemetry stream. Workers share a queue
// group so scaled-out instances split the subject between them.
func (e *Engine) Start(ctx context.Context, subs Subscriber) error {
	err := subs.QueueSubscribe(messaging.SubjectTelemetryReading, "anomaly-workers", func(msg *nats.Msg) {
		var ev messaging.ReadingEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			e.log.Warn("failed to decode reading event", zap.Error(err))
			return
		}
		e.Observe(ctx, ev)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to telemetry: %w", err)
	}
	return nil
}

// Observe feeds one reading through the detector. The first reading seen for
// a device only seeds its counter.
func (e *Engine) Observe(ctx context.Context, ev messaging.ReadingEvent) {
	e.mu.Lock()
	prev, seen := e.last[ev.DeviceID]
	e.last[ev.DeviceID] = ev.EnergyKWh
	e.mu.Unlock()

	if !seen || ev.EnergyKWh >= prev {
		return
	}

	regressionsTotal.WithLabelValues(ev.DeviceID).Inc()

	a := Anomaly{
		ID:          uuid.New(),
		DeviceID:    ev.DeviceID,
		PreviousKWh: prev,
		ReportedKWh: ev.EnergyKWh,
		Timestamp:   ev.Timestamp,
		Detail:      fmt.Sprintf("cumulative energy regressed from %.4f to %.4f kWh", prev, ev.EnergyKWh),
	}

	e.log.Warn("meter counter regression",
		zap.String("device_id", a.DeviceID),
		zap.Float64("previous_kWh", a.PreviousKWh),
		zap.Float64("reported_kWh", a.ReportedKWh))

	if err := e.store.Insert(ctx, a); err != nil {
		e.log.Error("failed to persist anomaly",
			zap.String("device_id", a.DeviceID), zap.Error(err))
	}

	if e.events != nil {
		out := messaging.AnomalyEvent{
			ID:          a.ID,
			DeviceID:    a.DeviceID,
			PreviousKWh: a.PreviousKWh,
			ReportedKWh: a.ReportedKWh,
			Timestamp:   a.Timestamp,
			Detail:      a.Detail,
		}
		if err := e.events.Publish(ctx, messaging.SubjectMeterAnomaly, out); err != nil {
			e.log.Warn("failed to publish anomaly event",
				zap.String("device_id", a.DeviceID), zap.Error(err))
		}
	}
}

// Recent returns the most recently recorded anomalies.
func (e *Engine) Recent(ctx context.Context, limit int) ([]Anomaly, error) {
	return e.store.Recent(ctx, limit)
}
