package alert

import (
	"fmt"
	"strings"

	"github.com/vzahanych/weather-alert-bot/internal/weather"
)

// Config holds one rule record per alert type.
type Config struct {
	Wind              WindRule              `mapstructure:"wind" json:"wind"`
	Storm             StormRule             `mapstructure:"storm" json:"storm"`
	Temperature       TemperatureRule       `mapstructure:"temperature" json:"temperature"`
	Precipitation     PrecipitationRule     `mapstructure:"precipitation" json:"precipitation"`
	WeatherConditions WeatherConditionsRule `mapstructure:"weather_conditions" json:"weather_conditions"`
}

// DefaultConfig returns every rule disabled, checking one day ahead, with
// the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Wind:              WindRule{CheckDaysAhead: 1, ThresholdKmh: 50},
		Storm:             StormRule{CheckDaysAhead: 1, WindGustThresholdKmh: 70, PrecipitationThresholdMM: 20},
		Temperature:       TemperatureRule{CheckDaysAhead: 1},
		Precipitation:     PrecipitationRule{CheckDaysAhead: 1, ThresholdMM: 30},
		WeatherConditions: WeatherConditionsRule{CheckDaysAhead: 1},
	}
}

// Rules returns the rule records in evaluation order.
func (c Config) Rules() []Rule {
	return []Rule{c.Wind, c.Storm, c.Temperature, c.Precipitation, c.WeatherConditions}
}

// Rule is implemented only by the rule records of this package.
type Rule interface {
	Type() Type
	// Enabled reports whether the rule is switched on and has the thresholds
	// it needs.
	Enabled() bool
	DaysAhead() int
	check(summary weather.DailySummary) (finding, bool)
}

type finding struct {
	severity Severity
	message  string
	details  Details
}

type tier struct {
	factor   float64
	severity Severity
}

// tiered returns the severity of the first tier whose threshold multiple
// value reaches, or fallback.
func tiered(value, threshold float64, tiers []tier, fallback Severity) Severity {
	for _, t := range tiers {
		if value >= threshold*t.factor {
			return t.severity
		}
	}
	return fallback
}

type WindRule struct {
	On             bool    `mapstructure:"enabled" json:"enabled"`
	CheckDaysAhead int     `mapstructure:"check_days_ahead" json:"check_days_ahead" validate:"min=0"`
	ThresholdKmh   float64 `mapstructure:"threshold_kmh" json:"threshold_kmh" validate:"min=0"`
}

var windTiers = []tier{{1.5, SeveritySevere}, {1.2, SeverityHigh}}

func (r WindRule) Type() Type     { return TypeWind }
func (r WindRule) Enabled() bool  { return r.On && r.ThresholdKmh > 0 }
func (r WindRule) DaysAhead() int { return r.CheckDaysAhead }

func (r WindRule) check(s weather.DailySummary) (finding, bool) {
	peak := max(s.WindSpeedMax, s.WindGustMax)
	if peak < r.ThresholdKmh {
		return finding{}, false
	}
	return finding{
		severity: tiered(peak, r.ThresholdKmh, windTiers, SeverityModerate),
		message:  fmt.Sprintf("high winds expected with gusts up to %.0f km/h", s.WindGustMax),
		details: Details{
			{"max_wind_speed_kmh", s.WindSpeedMax},
			{"max_wind_gust_kmh", s.WindGustMax},
			{"threshold_kmh", r.ThresholdKmh},
		},
	}, true
}

type StormRule struct {
	On                       bool    `mapstructure:"enabled" json:"enabled"`
	CheckDaysAhead           int     `mapstructure:"check_days_ahead" json:"check_days_ahead" validate:"min=0"`
	WindGustThresholdKmh     float64 `mapstructure:"wind_gust_threshold_kmh" json:"wind_gust_threshold_kmh" validate:"min=0"`
	PrecipitationThresholdMM float64 `mapstructure:"precipitation_threshold_mm" json:"precipitation_threshold_mm" validate:"min=0"`
}

func (r StormRule) Type() Type { return TypeStorm }
func (r StormRule) Enabled() bool {
	return r.On && r.WindGustThresholdKmh > 0 && r.PrecipitationThresholdMM > 0
}
func (r StormRule) DaysAhead() int { return r.CheckDaysAhead }

func (r StormRule) check(s weather.DailySummary) (finding, bool) {
	if s.WindGustMax < r.WindGustThresholdKmh || s.PrecipitationTotal < r.PrecipitationThresholdMM {
		return finding{}, false
	}
	return finding{
		severity: SeveritySevere,
		message: fmt.Sprintf("storm conditions expected with strong winds up to %.0f km/h and heavy precipitation (%.1f mm)",
			s.WindGustMax, s.PrecipitationTotal),
		details: Details{
			{"max_wind_gust_kmh", s.WindGustMax},
			{"total_precipitation_mm", s.PrecipitationTotal},
			{"wind_threshold_kmh", r.WindGustThresholdKmh},
			{"precipitation_threshold_mm", r.PrecipitationThresholdMM},
		},
	}, true
}

// TemperatureRule fires for cold before heat and never for both.
type TemperatureRule struct {
	On             bool     `mapstructure:"enabled" json:"enabled"`
	CheckDaysAhead int      `mapstructure:"check_days_ahead" json:"check_days_ahead" validate:"min=0"`
	MinTempC       *float64 `mapstructure:"min_temp_c" json:"min_temp_c,omitempty"`
	MaxTempC       *float64 `mapstructure:"max_temp_c" json:"max_temp_c,omitempty"`
}

const temperatureMargin = 5.0

func (r TemperatureRule) Type() Type     { return TypeTemperature }
func (r TemperatureRule) Enabled() bool  { return r.On && (r.MinTempC != nil || r.MaxTempC != nil) }
func (r TemperatureRule) DaysAhead() int { return r.CheckDaysAhead }

func (r TemperatureRule) check(s weather.DailySummary) (finding, bool) {
	if r.MinTempC != nil && s.TempMin <= *r.MinTempC {
		severity := SeverityModerate
		if s.TempMin <= *r.MinTempC-temperatureMargin {
			severity = SeverityHigh
		}
		return finding{
			severity: severity,
			message:  fmt.Sprintf("very cold temperatures expected with lows of %.0f°C", s.TempMin),
			details: Details{
				{"min_temperature_c", s.TempMin},
				{"threshold_c", *r.MinTempC},
			},
		}, true
	}

	if r.MaxTempC != nil && s.TempMax >= *r.MaxTempC {
		severity := SeverityModerate
		if s.TempMax >= *r.MaxTempC+temperatureMargin {
			severity = SeverityHigh
		}
		return finding{
			severity: severity,
			message:  fmt.Sprintf("very hot temperatures expected with highs of %.0f°C", s.TempMax),
			details: Details{
				{"max_temperature_c", s.TempMax},
				{"threshold_c", *r.MaxTempC},
			},
		}, true
	}

	return finding{}, false
}

type PrecipitationRule struct {
	On             bool    `mapstructure:"enabled" json:"enabled"`
	CheckDaysAhead int     `mapstructure:"check_days_ahead" json:"check_days_ahead" validate:"min=0"`
	ThresholdMM    float64 `mapstructure:"threshold_mm" json:"threshold_mm" validate:"min=0"`
}

var precipitationTiers = []tier{{2, SeveritySevere}, {1.5, SeverityHigh}}

func (r PrecipitationRule) Type() Type     { return TypePrecipitation }
func (r PrecipitationRule) Enabled() bool  { return r.On && r.ThresholdMM > 0 }
func (r PrecipitationRule) DaysAhead() int { return r.CheckDaysAhead }

func (r PrecipitationRule) check(s weather.DailySummary) (finding, bool) {
	if s.PrecipitationTotal < r.ThresholdMM {
		return finding{}, false
	}
	return finding{
		severity: tiered(s.PrecipitationTotal, r.ThresholdMM, precipitationTiers, SeverityModerate),
		message: fmt.Sprintf("heavy precipitation expected (%.1f mm) with %.0f%% probability",
			s.PrecipitationTotal, s.PrecipitationProbabilityMax),
		details: Details{
			{"total_precipitation_mm", s.PrecipitationTotal},
			{"probability_percent", s.PrecipitationProbabilityMax},
			{"threshold_mm", r.ThresholdMM},
		},
	}, true
}

type WeatherConditionsRule struct {
	On             bool     `mapstructure:"enabled" json:"enabled"`
	CheckDaysAhead int      `mapstructure:"check_days_ahead" json:"check_days_ahead" validate:"min=0"`
	AlertOn        []string `mapstructure:"alert_on" json:"alert_on"`
}

func (r WeatherConditionsRule) Type() Type     { return TypeWeatherConditions }
func (r WeatherConditionsRule) Enabled() bool  { return r.On && len(r.AlertOn) > 0 }
func (r WeatherConditionsRule) DaysAhead() int { return r.CheckDaysAhead }

func (r WeatherConditionsRule) check(s weather.DailySummary) (finding, bool) {
	phrases := make([]string, 0, len(r.AlertOn))
	for _, p := range r.AlertOn {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}

	var matched []string
	for _, c := range s.Conditions {
		lower := strings.ToLower(c)
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				matched = append(matched, c)
				break
			}
		}
	}
	if len(matched) == 0 {
		return finding{}, false
	}

	// The detail keeps the matched labels as a list; renderers comma-join it
	// the same way the message does.
	return finding{
		severity: SeverityModerate,
		message:  "adverse weather conditions expected: " + strings.Join(matched, ", "),
		details: Details{
			{"weather_conditions", matched},
			{"alert_on", r.AlertOn},
		},
	}, true
}
