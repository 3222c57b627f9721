package ingest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/energyflow/backend/internal/telemetry"
)

// Routes registers the device-facing endpoints on a router group.
func (s *Service) Routes(r gin.IRoutes) {
	r.POST("/telemetry", s.handleReport)
}

func (s *Service) handleReport(c *gin.Context) {
	var reading telemetry.LiveReading
	if err := c.ShouldBindJSON(&reading); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := reading.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.Ingest(c.Request.Context(), reading)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "ok"})
	case errors.Is(err, ErrUnknownDevice):
		c.JSON(http.StatusNotFound, gin.H{"error": "device not registered"})
	default:
		s.log.Error("failed to ingest reading", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store reading"})
	}
}
