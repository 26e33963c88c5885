package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ReadinessProbe reports when the service last evaluated forecasts. The zero
// time means never.
type ReadinessProbe interface {
	LastEvaluation() time.Time
}

type HealthHandler struct {
	probe     ReadinessProbe
	clock     clockwork.Clock
	logger    *zap.Logger
	startTime time.Time
}

func NewHealthHandler(probe ReadinessProbe, clock clockwork.Clock, logger *zap.Logger) *HealthHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HealthHandler{
		probe:     probe,
		clock:     clock,
		logger:    logger,
		startTime: clock.Now(),
	}
}

func (h *HealthHandler) uptime() string {
	return h.clock.Since(h.startTime).Round(time.Second).String()
}

func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "alive",
		Uptime: h.uptime(),
	})
}

// Readiness turns ready after the first evaluation that produced forecasts.
func (h *HealthHandler) Readiness(c *gin.Context) {
	last := h.probe.LastEvaluation()
	if last.IsZero() {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status: "not_ready",
			Uptime: h.uptime(),
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:         "ready",
		Uptime:         h.uptime(),
		LastEvaluation: last.UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Uptime:    h.uptime(),
		Timestamp: h.clock.Now().UTC().Format(time.RFC3339),
	})
}
