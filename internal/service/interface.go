package service

import (
	"context"
	"errors"

	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/weather"
)

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstream         = errors.New("weather provider error")
)

// ForecastService fetches the multi-day sample series for one location.
type ForecastService interface {
	GetForecast(ctx context.Context, location config.LocationConfig) (*weather.Forecast, error)
	Name() string
}
