package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/circuitbreaker"
	"github.com/aman-churiwal/credit-gateway/internal/healthcheck"
	"github.com/aman-churiwal/credit-gateway/internal/middleware"
	"github.com/aman-churiwal/credit-gateway/internal/sequence"
	"github.com/aman-churiwal/credit-gateway/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RelayControl is the operator view of the mail relays
type RelayControl interface {
	Breakers() map[string]circuitbreaker.Metrics
	ResetBreaker(relay string) bool
}

// Handles operator endpoints
type AdminHandler struct {
	auth      *service.AuthService
	sequences sequence.Store
	relays    RelayControl
	health    *healthcheck.Checker
	backends  map[string]string
	started   time.Time
	logger    *zap.Logger
}

func NewAdminHandler(auth *service.AuthService, sequences sequence.Store, relays RelayControl, health *healthcheck.Checker, backends map[string]string, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		auth:      auth,
		sequences: sequences,
		relays:    relays,
		health:    health,
		backends:  backends,
		started:   time.Now(),
		logger:    logger,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "username and password are required",
		})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrAdminDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin access is not configured"})
		return
	case err != nil:
		h.logger.Info("Admin login rejected", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AdminHandler) Status(c *gin.Context) {
	overall, checks := h.health.Check(c.Request.Context())

	var relays map[string]circuitbreaker.Metrics
	if h.relays != nil {
		relays = h.relays.Breakers()
	}

	c.JSON(http.StatusOK, gin.H{
		"gateway":   "running",
		"health":    overall.String(),
		"checks":    checks,
		"stores":    h.backends,
		"relays":    relays,
		"uptime":    time.Since(h.started).Seconds(),
		"timestamp": time.Now().Unix(),
	})
}

// Returns the last order number issued to a merchant
func (h *AdminHandler) Sequence(c *gin.Context) {
	merchant := c.Param("merchant")

	value, err := h.sequences.Peek(c.Request.Context(), merchant)
	if err != nil {
		h.logger.Warn("Sequence peek failed", zap.String("merchant", merchant), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Sequence store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"merchant": merchant,
		"key":      sequence.SanitizeKey(merchant),
		"value":    value,
	})
}

// Manually closes a relay's circuit breaker
func (h *AdminHandler) ResetRelay(c *gin.Context) {
	relay := c.Param("relay")

	if h.relays == nil || !h.relays.ResetBreaker(relay) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Relay not found",
		})
		return
	}

	h.logger.Info("Relay breaker reset", zap.String("relay", relay), zap.String("admin", c.GetString(middleware.AdminKey)))
	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
		"relay":   relay,
	})
}
