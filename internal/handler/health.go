package handler

import (
	"net/http"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/healthcheck"
	"github.com/gin-gonic/gin"
)

const (
	serviceName = "credit-gateway"
	version     = "1.0.0"
)

type HealthHandler struct {
	checker *healthcheck.Checker
}

func NewHealthHandler(checker *healthcheck.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Degraded still answers 200: submissions keep flowing without redis or the
// database, only with weaker guarantees.
func (h *HealthHandler) Health(c *gin.Context) {
	overall, checks := h.checker.Check(c.Request.Context())

	statusCode := http.StatusOK
	if overall == healthcheck.Unhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    overall.String(),
		"service":   serviceName,
		"version":   version,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}
