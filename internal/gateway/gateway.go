package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/energyflow/backend/internal/auth"
	"github.com/energyflow/backend/internal/billing"
	"github.com/energyflow/backend/internal/telemetry"
)

// Accounts is the slice of the auth service the gateway uses.
type Accounts interface {
	Register(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	VerifyToken(token string) (string, error)
}

// Billing is the slice of the billing engine the gateway uses.
type Billing interface {
	GetLiveUsage(ctx context.Context, userID string) (billing.UsageSnapshot, error)
	History(ctx context.Context, userID string) ([]billing.BillingPeriod, error)
	CommitReading(ctx context.Context, userID string) (*billing.BillingPeriod, error)
}

// Devices is the slice of the device directory the gateway uses.
type Devices interface {
	Register(ctx context.Context, userID, deviceID string) error
	DeviceForUser(ctx context.Context, userID string) (string, bool, error)
	OwnerOf(ctx context.Context, deviceID string) (string, bool, error)
}

// LiveReader reads the last stored reading for a device.
type LiveReader interface {
	Live(ctx context.Context, deviceID string) (*telemetry.LiveReading, error)
}

// HealthChecker reports broker connectivity for the health endpoint.
type HealthChecker interface {
	Healthy() bool
}

// Config holds gateway configuration. Server-level settings (port, timeouts)
// belong to the http.Server the caller mounts Handler on.
type Config struct {
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Gateway is the user-facing API service. Meters never talk to it; they
// report through the ingest service. The gateway serves accounts, device
// registration, live usage, and the billing ledger.
type Gateway struct {
	router      *gin.Engine
	accounts    Accounts
	billing     Billing
	devices     Devices
	live        LiveReader
	broker      HealthChecker
	hub         *Hub
	rateLimiter *RateLimiter
	log         *zap.Logger
}

// NewGateway creates the API gateway.
func NewGateway(cfg Config, accounts Accounts, bill Billing, devices Devices, live LiveReader, broker HealthChecker, log *zap.Logger) *Gateway {
	g := &Gateway{
		router:      gin.New(),
		accounts:    accounts,
		billing:     bill,
		devices:     devices,
		live:        live,
		broker:      broker,
		hub:         NewHub(log),
		rateLimiter: NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		log:         log,
	}

	g.router.Use(gin.Recovery())
	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.Use(g.tracingMiddleware())
	g.router.Use(g.rateLimitMiddleware())

	g.router.GET("/health", g.healthCheck)
	g.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := g.router.Group("/api/v1")
	{
		v1.POST("/auth/register", g.register)
		v1.POST("/auth/login", g.login)

		v1.POST("/devices", g.authMiddleware(), g.registerDevice)
		v1.GET("/devices", g.authMiddleware(), g.listDevices)

		v1.GET("/live", g.authMiddleware(), g.liveUsage)
		v1.GET("/live/ws", g.authMiddleware(), g.handleWebSocket)

		v1.POST("/billing/readings", g.authMiddleware(), g.commitReading)
		v1.GET("/billing/history", g.authMiddleware(), g.billingHistory)
	}
}

// Handler exposes the router for tests and for embedding in an http.Server.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Middleware

func (g *Gateway) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		userID, err := g.accounts.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

func (g *Gateway) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !g.rateLimiter.Allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (g *Gateway) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set("correlation_id", correlationID)
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
	}
}

// Handlers

func (g *Gateway) healthCheck(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if g.broker != nil && !g.broker.Healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status})
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (g *Gateway) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := g.accounts.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
			return
		}
		g.log.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register"})
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (g *Gateway) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := g.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) || errors.Is(err, auth.ErrInvalidPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		g.log.Error("failed to log in user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type registerDeviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

func (g *Gateway) registerDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID := c.MustGet("user_id").(string)

	if err := g.devices.Register(c.Request.Context(), userID, req.DeviceID); err != nil {
		g.log.Error("failed to register device",
			zap.String("device_id", req.DeviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Device registered"})
}

func (g *Gateway) listDevices(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	deviceID, ok, err := g.devices.DeviceForUser(c.Request.Context(), userID)
	if err != nil {
		g.log.Error("failed to resolve device", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list devices"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"devices": []interface{}{}})
		return
	}

	device := gin.H{"device_id": deviceID}
	if live, err := g.live.Live(c.Request.Context(), deviceID); err == nil && live != nil {
		device["last_seen"] = live.Timestamp
	}

	c.JSON(http.StatusOK, gin.H{"devices": []gin.H{device}})
}

func (g *Gateway) liveUsage(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	snapshot, err := g.billing.GetLiveUsage(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, billing.ErrNoDeviceRegistered) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no device registered"})
			return
		}
		g.log.Error("failed to project live usage", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read live usage"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (g *Gateway) commitReading(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	period, err := g.billing.CommitReading(c.Request.Context(), userID)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, period)
	case errors.Is(err, billing.ErrNoDeviceRegistered):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no device registered", "code": "no_device"})
	case errors.Is(err, billing.ErrNoLiveData):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no live data", "code": "no_live_data"})
	case errors.Is(err, billing.ErrNoNewData):
		c.JSON(http.StatusConflict, gin.H{"error": "no new telemetry since last bill", "code": "no_new_data"})
	case errors.Is(err, billing.ErrAnomalousReading):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "meter reading below billed baseline", "code": "anomalous_reading"})
	case errors.Is(err, billing.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent commit, retry", "code": "conflict"})
	default:
		g.log.Error("failed to commit reading", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to commit reading"})
	}
}

func (g *Gateway) billingHistory(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	periods, err := g.billing.History(c.Request.Context(), userID)
	if err != nil {
		g.log.Error("failed to load billing history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if periods == nil {
		periods = []billing.BillingPeriod{}
	}

	c.JSON(http.StatusOK, gin.H{"periods": periods})
}
