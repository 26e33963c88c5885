package handlers

import (
	"github.com/vzahanych/weather-alert-bot/internal/alert"
	"github.com/vzahanych/weather-alert-bot/internal/weather"
)

// SummaryRequest selects one location's daily summary.
type SummaryRequest struct {
	Location  string `uri:"location" json:"location" validate:"required,min=1,max=100"`
	DaysAhead int    `form:"days_ahead" json:"days_ahead" validate:"min=0,max=5"`
}

type AlertsResponse struct {
	Alerts      []alert.Alert `json:"alerts"`
	Count       int           `json:"count"`
	Locations   int           `json:"locations"`
	EvaluatedAt string        `json:"evaluated_at"`
}

type SummaryResponse struct {
	Location  string               `json:"location"`
	DaysAhead int                  `json:"days_ahead"`
	Summary   weather.DailySummary `json:"summary"`
}

// ErrorResponse represents an error response with validation
type ErrorResponse struct {
	Error   string `json:"error" validate:"required,min=1,max=500"`
	Code    string `json:"code,omitempty" validate:"omitempty,min=1,max=50"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse represents health check response with validation
type HealthResponse struct {
	Status         string `json:"status" validate:"required,oneof=ok alive ready not_ready"`
	Uptime         string `json:"uptime" validate:"required"`
	Timestamp      string `json:"timestamp,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	LastEvaluation string `json:"last_evaluation,omitempty"`
}
