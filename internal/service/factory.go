package service

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/pkg/telemetry"
	"go.uber.org/zap"
)

const (
	ProviderOpenWeatherMap = "openweathermap"
	ProviderOpenMeteo      = "open-meteo"
)

// NewForecastService builds the provider named by cfg.Weather.Provider.
func NewForecastService(cfg *config.Config, clock clockwork.Clock, logger *zap.Logger, tele *telemetry.Telemetry) (ForecastService, error) {
	switch cfg.Weather.Provider {
	case ProviderOpenMeteo:
		return NewOpenMeteoService(cfg.Weather, clock, logger, tele), nil
	case ProviderOpenWeatherMap, "":
		apiKey, err := cfg.APIKey(ProviderOpenWeatherMap)
		if err != nil {
			return nil, err
		}
		return NewOpenWeatherMapService(cfg.Weather, apiKey, clock, logger, tele), nil
	default:
		return nil, fmt.Errorf("%w: unknown weather provider %q", config.ErrConfig, cfg.Weather.Provider)
	}
}
