package alert

import (
	"fmt"
	"math"

	"github.com/jonboulle/clockwork"
	"github.com/vzahanych/weather-alert-bot/internal/weather"
	"go.uber.org/zap"
)

// Summarizer produces the daily summary of a forecast at a day offset.
type Summarizer interface {
	Summarize(forecast weather.Forecast, dayOffset int) (weather.DailySummary, bool)
}

type Classifier struct {
	cfg    Config
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewClassifier(cfg Config, clock clockwork.Clock, logger *zap.Logger) *Classifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		cfg:    cfg,
		clock:  clock,
		logger: logger.With(zap.String("component", "classifier")),
	}
}

func (c *Classifier) Config() Config {
	return c.cfg
}

// EnabledTypes returns the enabled alert types in evaluation order.
func (c *Classifier) EnabledTypes() []Type {
	var types []Type
	for _, r := range c.cfg.Rules() {
		if r.Enabled() {
			types = append(types, r.Type())
		}
	}
	return types
}

// Evaluate runs every enabled rule against summary in evaluation order and
// returns the alerts that fired.
//
// It panics if summary is malformed.
func (c *Classifier) Evaluate(summary weather.DailySummary) []Alert {
	mustBeWellFormed(summary)

	var alerts []Alert
	for _, r := range c.cfg.Rules() {
		if a, ok := c.apply(r, summary); ok {
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// EvaluateAll checks every forecast. For each enabled rule it summarizes the
// forecast at that rule's day offset and runs the full classification
// against the summary, so rules sharing an offset repeat its alerts. A
// missing summary skips the rule for that location.
func (c *Classifier) EvaluateAll(forecasts []weather.Forecast, summarizer Summarizer) []Alert {
	var alerts []Alert

	for _, f := range forecasts {
		logger := c.logger.With(zap.String("location", f.LocationName))
		logger.Debug("Checking alerts")

		summaries := make(map[int]*weather.DailySummary)
		for _, r := range c.cfg.Rules() {
			if !r.Enabled() {
				continue
			}

			offset := r.DaysAhead()
			summary, seen := summaries[offset]
			if !seen {
				if s, ok := summarizer.Summarize(f, offset); ok {
					summary = &s
				}
				summaries[offset] = summary
			}

			if summary == nil {
				logger.Warn("No forecast data for day offset, skipping rule",
					zap.String("alert_type", string(r.Type())),
					zap.Int("days_ahead", offset))
				continue
			}

			alerts = append(alerts, c.Evaluate(*summary)...)
		}
	}

	c.logger.Info("Alert evaluation complete",
		zap.Int("locations", len(forecasts)),
		zap.Int("alerts", len(alerts)))

	return alerts
}

func (c *Classifier) apply(r Rule, summary weather.DailySummary) (Alert, bool) {
	if !r.Enabled() {
		return Alert{}, false
	}
	f, ok := r.check(summary)
	if !ok {
		return Alert{}, false
	}
	return Alert{
		LocationName: summary.LocationName,
		Type:         r.Type(),
		Severity:     f.severity,
		Message:      f.message,
		Details:      f.details,
		ForecastDate: summary.Date,
		CreatedAt:    c.clock.Now(),
	}, true
}

func mustBeWellFormed(s weather.DailySummary) {
	if s.Date.IsZero() {
		panic(fmt.Sprintf("alert: daily summary for %q has no date", s.LocationName))
	}
	fields := map[string]float64{
		"temp_min":                      s.TempMin,
		"temp_max":                      s.TempMax,
		"temp_avg":                      s.TempAvg,
		"wind_speed_max":                s.WindSpeedMax,
		"wind_gust_max":                 s.WindGustMax,
		"precipitation_total":           s.PrecipitationTotal,
		"precipitation_probability_max": s.PrecipitationProbabilityMax,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			panic(fmt.Sprintf("alert: daily summary for %q has invalid %s: %v", s.LocationName, name, v))
		}
	}
}
