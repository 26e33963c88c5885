package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/vzahanych/weather-alert-bot/internal/alert"
	"github.com/vzahanych/weather-alert-bot/internal/monitor"
	"github.com/vzahanych/weather-alert-bot/internal/server/utils"
	"github.com/vzahanych/weather-alert-bot/internal/service"
	"github.com/vzahanych/weather-alert-bot/internal/weather"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Evaluator runs on-demand evaluations for the API.
type Evaluator interface {
	Evaluate(ctx context.Context) (monitor.Evaluation, error)
	Summary(ctx context.Context, location string, daysAhead int) (weather.DailySummary, bool, error)
}

type WeatherHandler struct {
	evaluator Evaluator
	clock     clockwork.Clock
	logger    *zap.Logger
}

func NewWeatherHandler(evaluator Evaluator, clock clockwork.Clock, logger *zap.Logger) *WeatherHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WeatherHandler{
		evaluator: evaluator,
		clock:     clock,
		logger:    logger,
	}
}

// GetAlerts evaluates every configured location now and returns the alerts
// without dispatching them.
func (h *WeatherHandler) GetAlerts(c *gin.Context) {
	ctx := utils.GetContextFromGinContext(c)
	reqLogger := h.logger.With(zap.String("request_id", utils.GetRequestIDFromGinContext(c)))

	ev, err := h.evaluator.Evaluate(ctx)
	if err != nil {
		reqLogger.Error("Failed to evaluate alerts", zap.Error(err))
		writeError(c, err)
		return
	}

	alerts := ev.Alerts
	if alerts == nil {
		alerts = []alert.Alert{}
	}

	reqLogger.Info("Alert evaluation served",
		zap.Int("locations", len(ev.Forecasts)),
		zap.Int("alerts", len(alerts)))

	c.JSON(http.StatusOK, AlertsResponse{
		Alerts:      alerts,
		Count:       len(alerts),
		Locations:   len(ev.Forecasts),
		EvaluatedAt: h.clock.Now().UTC().Format(time.RFC3339),
	})
}

// GetSummary returns the daily summary of one configured location.
func (h *WeatherHandler) GetSummary(c *gin.Context) {
	ctx := utils.GetContextFromGinContext(c)
	reqLogger := h.logger.With(zap.String("request_id", utils.GetRequestIDFromGinContext(c)))

	var req SummaryRequest
	if err := c.ShouldBindUri(&req); err != nil {
		badRequest(c, reqLogger, err)
		return
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, reqLogger, err)
		return
	}
	if verrs := utils.ValidateStruct(req); len(verrs) > 0 {
		reqLogger.Warn("Invalid request parameters", zap.Any("errors", verrs))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request parameters",
			Code:    "INVALID_PARAMS",
			Details: verrs,
		})
		return
	}

	utils.GetSpanFromGinContext(c).SetAttributes(
		attribute.String("location", req.Location),
		attribute.Int("days_ahead", req.DaysAhead))
	reqLogger.Info("Processing summary request",
		zap.String("location", req.Location),
		zap.Int("days_ahead", req.DaysAhead))

	summary, ok, err := h.evaluator.Summary(ctx, req.Location, req.DaysAhead)
	if err != nil {
		reqLogger.Error("Failed to build summary", zap.Error(err))
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "No forecast data for the requested day",
			Code:  "NO_FORECAST_DATA",
		})
		return
	}

	c.JSON(http.StatusOK, SummaryResponse{
		Location:  summary.LocationName,
		DaysAhead: req.DaysAhead,
		Summary:   summary,
	})
}

func badRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("Invalid request parameters", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid request parameters",
		Code:    "INVALID_PARAMS",
		Details: err.Error(),
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, monitor.ErrUnknownLocation):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Location is not configured", Code: "UNKNOWN_LOCATION", Details: err.Error()})
	case errors.Is(err, service.ErrLocationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Location could not be resolved", Code: "LOCATION_NOT_FOUND", Details: err.Error()})
	case errors.Is(err, monitor.ErrNegativeDayShift):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request parameters", Code: "INVALID_PARAMS", Details: err.Error()})
	case errors.Is(err, monitor.ErrNoForecasts):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "No forecasts available", Code: "NO_FORECASTS", Details: err.Error()})
	case errors.Is(err, service.ErrUpstream):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Weather provider error", Code: "UPSTREAM_ERROR", Details: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch weather data", Code: "AGGREGATION_ERROR", Details: err.Error()})
	}
}
