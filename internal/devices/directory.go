package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Directory maintains the user/device association in Redis. The platform
// models one meter per user; registering a new device replaces the old
// association in both directions.
type Directory struct {
	rdb *redis.Client
}

// NewDirectory creates a device directory on an existing Redis client.
func NewDirectory(rdb *redis.Client) *Directory {
	return &Directory{rdb: rdb}
}

func userKey(userID string) string    { return "devices:user:" + userID }
func ownerKey(deviceID string) string { return "devices:owner:" + deviceID }

// Register associates deviceID with userID, replacing any previous device.
// Both directions are written in one pipeline so a lookup never sees half an
// association.
func (d *Directory) Register(ctx context.Context, userID, deviceID string) error {
	if userID == "" || deviceID == "" {
		return fmt.Errorf("user id and device id are required")
	}

	pipe := d.rdb.TxPipeline()
	pipe.Set(ctx, userKey(userID), deviceID, 0)
	pipe.Set(ctx, ownerKey(deviceID), userID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// DeviceForUser returns the user's device id. The second return value is
// false when the user has no registered device.
func (d *Directory) DeviceForUser(ctx context.Context, userID string) (string, bool, error) {
	deviceID, err := d.rdb.Get(ctx, userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve device: %w", err)
	}
	return deviceID, true, nil
}

// OwnerOf returns the user owning a device. The second return value is false
// for unknown devices.
func (d *Directory) OwnerOf(ctx context.Context, deviceID string) (string, bool, error) {
	userID, err := d.rdb.Get(ctx, ownerKey(deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve owner: %w", err)
	}
	return userID, true, nil
}
