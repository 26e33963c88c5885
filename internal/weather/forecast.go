package weather

import (
	"time"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Sample is one sub-daily forecast reading. Temperatures are in °C, wind in
// km/h, precipitation in mm accumulated over the sample's bucket window.
type Sample struct {
	Time                     time.Time `json:"time"`
	TempMin                  float64   `json:"temp_min"`
	TempMax                  float64   `json:"temp_max"`
	Temperature              float64   `json:"temperature"`
	WindSpeedKmh             float64   `json:"wind_speed_kmh"`
	WindGustKmh              float64   `json:"wind_gust_kmh"`
	PrecipitationMM          float64   `json:"precipitation_mm"`
	PrecipitationProbability float64   `json:"precipitation_probability_pct"`
	Condition                string    `json:"condition"`
	Description              string    `json:"description,omitempty"`
}

// Forecast is the provider's time series for one configured location.
type Forecast struct {
	LocationName string      `json:"location_name"`
	City         string      `json:"city"`
	Country      string      `json:"country"`
	Coordinates  Coordinates `json:"coordinates"`
	Samples      []Sample    `json:"samples"`
	FetchedAt    time.Time   `json:"fetched_at"`
}

// DailySummary is the per-day reduction of a Forecast's samples.
type DailySummary struct {
	LocationName                string    `json:"location_name"`
	Date                        time.Time `json:"date"`
	TempMin                     float64   `json:"temp_min"`
	TempMax                     float64   `json:"temp_max"`
	TempAvg                     float64   `json:"temp_avg"`
	WindSpeedMax                float64   `json:"wind_speed_max"`
	WindGustMax                 float64   `json:"wind_gust_max"`
	PrecipitationTotal          float64   `json:"precipitation_total"`
	PrecipitationProbabilityMax float64   `json:"precipitation_probability_max"`
	Conditions                  []string  `json:"weather_conditions"`
	Samples                     []Sample  `json:"samples,omitempty"`
}
