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
	openMeteoName         = "open-meteo"
	openMeteoBaseURL      = "https://api.open-meteo.com/v1"
	openMeteoGeocodingURL = "https://geocoding-api.open-meteo.com/v1"
	openMeteoForecastDays = 5
	openMeteoHourlyFields = "temperature_2m,precipitation,precipitation_probability,weather_code,wind_speed_10m,wind_gusts_10m"
)

// OpenMeteoService reads the hourly Open-Meteo forecast. No API key needed.
type OpenMeteoService struct {
	baseURL      string
	geocodingURL string
	http         *HTTPClient
	clock        clockwork.Clock
	logger       *zap.Logger
	tele         *telemetry.Telemetry
}

func NewOpenMeteoService(cfg config.WeatherConfig, clock clockwork.Clock, logger *zap.Logger, tele *telemetry.Telemetry) *OpenMeteoService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openMeteoBaseURL
	}
	geocodingURL := cfg.GeocodingURL
	if geocodingURL == "" {
		geocodingURL = openMeteoGeocodingURL
	}
	return &OpenMeteoService{
		baseURL:      strings.TrimRight(baseURL, "/"),
		geocodingURL: strings.TrimRight(geocodingURL, "/"),
		http:         NewHTTPClient(openMeteoName, cfg.Timeout, cfg.RateLimit, tele),
		clock:        clock,
		logger:       logger.With(zap.String("service", openMeteoName)),
		tele:         tele,
	}
}

func (s *OpenMeteoService) Name() string {
	return openMeteoName
}

type openMeteoGeocodeResponse struct {
	Results []struct {
		Name        string  `json:"name"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		CountryCode string  `json:"country_code"`
	} `json:"results"`
}

// Hourly values may be null past the model horizon.
type openMeteoForecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Hourly    struct {
		Time                     []int64    `json:"time"`
		Temperature              []*float64 `json:"temperature_2m"`
		Precipitation            []*float64 `json:"precipitation"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
		WeatherCode              []*int     `json:"weather_code"`
		WindSpeed                []*float64 `json:"wind_speed_10m"`
		WindGusts                []*float64 `json:"wind_gusts_10m"`
	} `json:"hourly"`
}

type place struct {
	coords  weather.Coordinates
	city    string
	country string
}

func (s *OpenMeteoService) GetForecast(ctx context.Context, location config.LocationConfig) (*weather.Forecast, error) {
	ctx, span := s.tele.GetTracer().Start(ctx, "open-meteo.GetForecast")
	defer span.End()
	span.SetAttributes(attribute.String("location", location.Name))

	p, err := s.resolve(ctx, location)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.6f", p.coords.Lat))
	q.Set("longitude", fmt.Sprintf("%.6f", p.coords.Lon))
	q.Set("hourly", openMeteoHourlyFields)
	q.Set("wind_speed_unit", "kmh")
	q.Set("timeformat", "unixtime")
	q.Set("forecast_days", fmt.Sprint(openMeteoForecastDays))

	var resp openMeteoForecastResponse
	if err := s.http.GetJSON(ctx, s.baseURL+"/forecast?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch forecast for %s: %w", location.Name, err)
	}

	h := resp.Hourly
	forecast := &weather.Forecast{
		LocationName: location.Name,
		City:         p.city,
		Country:      p.country,
		Coordinates:  weather.Coordinates{Lat: resp.Latitude, Lon: resp.Longitude},
		Samples:      make([]weather.Sample, 0, len(h.Time)),
		FetchedAt:    s.clock.Now(),
	}

	for i, ts := range h.Time {
		temp, ok := at(h.Temperature, i)
		if !ok {
			continue
		}
		code, _ := at(h.WeatherCode, i)
		speed, _ := at(h.WindSpeed, i)
		gust, _ := at(h.WindGusts, i)
		precip, _ := at(h.Precipitation, i)
		prob, _ := at(h.PrecipitationProbability, i)

		condition, description := DescribeWMOCode(code)
		forecast.Samples = append(forecast.Samples, weather.Sample{
			Time:                     time.Unix(ts, 0),
			Temperature:              temp,
			TempMin:                  temp,
			TempMax:                  temp,
			WindSpeedKmh:             speed,
			WindGustKmh:              gust,
			PrecipitationMM:          precip,
			PrecipitationProbability: prob,
			Condition:                condition,
			Description:              description,
		})
	}

	span.SetAttributes(attribute.Int("samples", len(forecast.Samples)))
	s.logger.Debug("Fetched forecast",
		zap.String("location", location.Name),
		zap.Int("samples", len(forecast.Samples)))

	return forecast, nil
}

func (s *OpenMeteoService) resolve(ctx context.Context, location config.LocationConfig) (place, error) {
	if location.HasCoordinates() {
		return place{coords: weather.Coordinates{Lat: *location.Lat, Lon: *location.Lon}, city: location.City}, nil
	}

	// "London,GB" style names: the search endpoint takes the bare name and
	// an optional ISO country code.
	name, country, _ := strings.Cut(location.City, ",")
	q := url.Values{}
	q.Set("name", strings.TrimSpace(name))
	q.Set("count", "1")
	q.Set("format", "json")
	if c := strings.TrimSpace(country); c != "" {
		q.Set("countryCode", strings.ToUpper(c))
	}

	var resp openMeteoGeocodeResponse
	if err := s.http.GetJSON(ctx, s.geocodingURL+"/search?"+q.Encode(), &resp); err != nil {
		return place{}, fmt.Errorf("geocode %q: %w", location.City, err)
	}
	if len(resp.Results) == 0 {
		return place{}, fmt.Errorf("%w: %s", ErrLocationNotFound, location.City)
	}

	r := resp.Results[0]
	return place{
		coords:  weather.Coordinates{Lat: r.Latitude, Lon: r.Longitude},
		city:    r.Name,
		country: r.CountryCode,
	}, nil
}

func at[T any](values []*T, i int) (T, bool) {
	var zero T
	if i >= len(values) || values[i] == nil {
		return zero, false
	}
	return *values[i], true
}

// DescribeWMOCode maps a WMO weather interpretation code to a condition
// label and a short description.
func DescribeWMOCode(code int) (string, string) {
	switch {
	case code == 0:
		return "Clear", "clear sky"
	case code == 1:
		return "Clouds", "mainly clear"
	case code == 2:
		return "Clouds", "partly cloudy"
	case code == 3:
		return "Clouds", "overcast"
	case code == 45 || code == 48:
		return "Fog", "fog"
	case code >= 51 && code <= 57:
		return "Drizzle", "drizzle"
	case code == 65 || code == 67 || code == 82:
		return "Rain", "heavy rain"
	case code >= 61 && code <= 67, code >= 80 && code <= 82:
		return "Rain", "rain"
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return "Snow", "snow"
	case code >= 95 && code <= 99:
		return "Thunderstorm", "thunderstorm"
	default:
		return "Unknown", "unknown"
	}
}
