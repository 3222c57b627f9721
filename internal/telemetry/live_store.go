package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// LiveStore keeps the single live-reading slot per device in Redis. The slot
// is overwritten on every report; billing only ever needs the latest value.
type LiveStore struct {
	rdb *redis.Client
}

// NewLiveStore creates a live-reading store on an existing Redis client.
func NewLiveStore(rdb *redis.Client) *LiveStore {
	return &LiveStore{rdb: rdb}
}

func liveKey(deviceID string) string {
	return "telemetry:live:" + deviceID
}

// SetLive overwrites the live slot for the reading's device.
func (s *LiveStore) SetLive(ctx context.Context, r LiveReading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	if err := s.rdb.Set(ctx, liveKey(r.DeviceID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store live reading: %w", err)
	}
	return nil
}

// Live returns the current live reading for a device, or nil if the device
// has never reported. Absence is not an error.
func (s *LiveStore) Live(ctx context.Context, deviceID string) (*LiveReading, error) {
	payload, err := s.rdb.Get(ctx, liveKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read live slot: %w", err)
	}

	var r LiveReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("failed to decode live reading: %w", err)
	}
	return &r, nil
}
