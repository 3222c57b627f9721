package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiveReadingValidate(t *testing.T) {
	valid := LiveReading{
		DeviceID:  "esp32-01",
		Voltage:   229.8,
		Power:     1240.5,
		EnergyKWh: 362.5,
		Timestamp: 1700000000,
	}

	t.Run("should accept a well-formed reading", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("should accept an idle meter", func(t *testing.T) {
		idle := valid
		idle.Power = 0
		idle.EnergyKWh = 0
		assert.NoError(t, idle.Validate())
	})

	t.Run("should reject a missing device id", func(t *testing.T) {
		r := valid
		r.DeviceID = ""
		assert.ErrorIs(t, r.Validate(), ErrMissingDeviceID)
	})

	t.Run("should reject a non-positive timestamp", func(t *testing.T) {
		r := valid
		r.Timestamp = 0
		assert.ErrorIs(t, r.Validate(), ErrBadTimestamp)
	})

	t.Run("should reject a negative cumulative counter", func(t *testing.T) {
		r := valid
		r.EnergyKWh = -1
		assert.Error(t, r.Validate())
	})
}
