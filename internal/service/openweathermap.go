package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/weather"
	"github.com/vzahanych/weather-alert-bot/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	openWeatherMapName    = "openweathermap"
	openWeatherMapBaseURL = "https://api.openweathermap.org"

	// metres per second to kilometres per hour
	msToKmh = 3.6
)

type OpenWeatherMapService struct {
	baseURL string
	apiKey  string
	http    *HTTPClient
	clock   clockwork.Clock
	logger  *zap.Logger
	tele    *telemetry.Telemetry
}

func NewOpenWeatherMapService(cfg config.WeatherConfig, apiKey string, clock clockwork.Clock, logger *zap.Logger, tele *telemetry.Telemetry) *OpenWeatherMapService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openWeatherMapBaseURL
	}
	return &OpenWeatherMapService{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    NewHTTPClient(openWeatherMapName, cfg.Timeout, cfg.RateLimit, tele),
		clock:   clock,
		logger:  logger.With(zap.String("service", openWeatherMapName)),
		tele:    tele,
	}
}

func (s *OpenWeatherMapService) Name() string {
	return openWeatherMapName
}

type owmGeocodeResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

type owmForecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp    float64 `json:"temp"`
			TempMin float64 `json:"temp_min"`
			TempMax float64 `json:"temp_max"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
			Gust  float64 `json:"gust"`
		} `json:"wind"`
		Rain struct {
			ThreeHours float64 `json:"3h"`
		} `json:"rain"`
		Snow struct {
			ThreeHours float64 `json:"3h"`
		} `json:"snow"`
		Pop float64 `json:"pop"`
	} `json:"list"`
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
		Coord   struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
	} `json:"city"`
}

// GetForecast returns the 5-day / 3-hour forecast, geocoding the city first
// when the location has no coordinates.
func (s *OpenWeatherMapService) GetForecast(ctx context.Context, location config.LocationConfig) (*weather.Forecast, error) {
	ctx, span := s.tele.GetTracer().Start(ctx, "openweathermap.GetForecast")
	defer span.End()
	span.SetAttributes(attribute.String("location", location.Name))

	coords, err := s.resolve(ctx, location)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.6f", coords.Lat))
	q.Set("lon", fmt.Sprintf("%.6f", coords.Lon))
	q.Set("units", "metric")
	q.Set("appid", s.apiKey)

	var resp owmForecastResponse
	if err := s.http.GetJSON(ctx, s.baseURL+"/data/2.5/forecast?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch forecast for %s: %w", location.Name, err)
	}

	forecast := &weather.Forecast{
		LocationName: location.Name,
		City:         resp.City.Name,
		Country:      resp.City.Country,
		Coordinates:  weather.Coordinates{Lat: resp.City.Coord.Lat, Lon: resp.City.Coord.Lon},
		Samples:      make([]weather.Sample, 0, len(resp.List)),
		FetchedAt:    s.clock.Now(),
	}

	for _, item := range resp.List {
		sample := weather.Sample{
			Time:                     time.Unix(item.Dt, 0),
			Temperature:              item.Main.Temp,
			TempMin:                  item.Main.TempMin,
			TempMax:                  item.Main.TempMax,
			WindSpeedKmh:             item.Wind.Speed * msToKmh,
			WindGustKmh:              item.Wind.Gust * msToKmh,
			PrecipitationMM:          item.Rain.ThreeHours + item.Snow.ThreeHours,
			PrecipitationProbability: item.Pop * 100,
		}
		if len(item.Weather) > 0 {
			sample.Condition = item.Weather[0].Main
			sample.Description = item.Weather[0].Description
		}
		forecast.Samples = append(forecast.Samples, sample)
	}

	span.SetAttributes(attribute.Int("samples", len(forecast.Samples)))
	s.logger.Debug("Fetched forecast",
		zap.String("location", location.Name),
		zap.String("city", forecast.City),
		zap.Int("samples", len(forecast.Samples)))

	return forecast, nil
}

func (s *OpenWeatherMapService) resolve(ctx context.Context, location config.LocationConfig) (weather.Coordinates, error) {
	if location.HasCoordinates() {
		return weather.Coordinates{Lat: *location.Lat, Lon: *location.Lon}, nil
	}

	q := url.Values{}
	q.Set("q", location.City)
	q.Set("limit", "1")
	q.Set("appid", s.apiKey)

	var results []owmGeocodeResult
	if err := s.http.GetJSON(ctx, s.baseURL+"/geo/1.0/direct?"+q.Encode(), &results); err != nil {
		return weather.Coordinates{}, fmt.Errorf("geocode %q: %w", location.City, err)
	}
	if len(results) == 0 {
		return weather.Coordinates{}, fmt.Errorf("%w: %s", ErrLocationNotFound, location.City)
	}

	return weather.Coordinates{Lat: results[0].Lat, Lon: results[0].Lon}, nil
}
