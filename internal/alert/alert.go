package alert

import (
	"bytes"
	"encoding/json"
	"time"
)

type Type string

const (
	TypeWind              Type = "wind"
	TypeStorm             Type = "storm"
	TypeTemperature       Type = "temperature"
	TypePrecipitation     Type = "precipitation"
	TypeWeatherConditions Type = "weather_conditions"
)

// Types lists every alert type in evaluation order.
var Types = []Type{TypeWind, TypeStorm, TypeTemperature, TypePrecipitation, TypeWeatherConditions}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeveritySevere   Severity = "severe"
)

// Rank orders severities from low (0) to severe (3). Unknown values rank -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityModerate:
		return 1
	case SeverityHigh:
		return 2
	case SeveritySevere:
		return 3
	default:
		return -1
	}
}

type Detail struct {
	Key   string
	Value any
}

// Details keeps detail entries in the order the rule produced them.
type Details []Detail

func (d Details) Get(key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func (d Details) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type Alert struct {
	LocationName string    `json:"location_name"`
	Type         Type      `json:"alert_type"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Details      Details   `json:"details"`
	ForecastDate time.Time `json:"forecast_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// Silent reports whether the alert should be delivered without a
// notification sound.
func (a Alert) Silent() bool {
	return a.Severity.Rank() <= SeverityModerate.Rank()
}
