package alert

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vzahanych/weather-alert-bot/internal/weather"
	"go.uber.org/zap/zaptest"
)

var (
	testNow  = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	tomorrow = time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC)
)

func ptr(v float64) *float64 { return &v }

func newTestClassifier(t *testing.T, cfg Config) *Classifier {
	return NewClassifier(cfg, clockwork.NewFakeClockAt(testNow), zaptest.NewLogger(t))
}

func calmSummary() weather.DailySummary {
	return weather.DailySummary{
		LocationName: "Home",
		Date:         tomorrow,
		TempMin:      10,
		TempMax:      18,
		TempAvg:      14,
		WindSpeedMax: 10,
		WindGustMax:  15,
		Conditions:   []string{"Clear"},
	}
}

func windConfig(threshold float64) Config {
	cfg := DefaultConfig()
	cfg.Wind.On = true
	cfg.Wind.ThresholdKmh = threshold
	return cfg
}

func TestWindRule_Severity(t *testing.T) {
	tests := []struct {
		name     string
		speed    float64
		gust     float64
		fires    bool
		severity Severity
	}{
		{"below threshold", 30, 49.9, false, ""},
		{"at threshold", 50, 0, true, SeverityModerate},
		{"speed and gust under 1.2x", 55, 59, true, SeverityModerate},
		{"gust exactly 1.2x", 55, 60, true, SeverityHigh},
		{"gust between 1.2x and 1.5x", 20, 74, true, SeverityHigh},
		{"gust exactly 1.5x", 20, 75, true, SeveritySevere},
		{"gust well above", 20, 80, true, SeveritySevere},
		{"speed alone severe", 90, 0, true, SeveritySevere},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := calmSummary()
			s.WindSpeedMax = tt.speed
			s.WindGustMax = tt.gust

			alerts := newTestClassifier(t, windConfig(50)).Evaluate(s)
			if !tt.fires {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, TypeWind, alerts[0].Type)
			assert.Equal(t, tt.severity, alerts[0].Severity)
		})
	}
}

func TestWindRule_AlertContents(t *testing.T) {
	s := calmSummary()
	s.WindSpeedMax = 55
	s.WindGustMax = 60

	alerts := newTestClassifier(t, windConfig(50)).Evaluate(s)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, "Home", a.LocationName)
	assert.Equal(t, "high winds expected with gusts up to 60 km/h", a.Message)
	assert.Equal(t, tomorrow, a.ForecastDate)
	assert.Equal(t, testNow, a.CreatedAt)
	assert.Equal(t, Details{
		{"max_wind_speed_kmh", 55.0},
		{"max_wind_gust_kmh", 60.0},
		{"threshold_kmh", 50.0},
	}, a.Details)
}

func TestStormRule_RequiresWindAndPrecipitation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wind.On = true
	cfg.Storm.On = true

	s := calmSummary()
	s.WindGustMax = 100
	s.PrecipitationTotal = 0

	alerts := newTestClassifier(t, cfg).Evaluate(s)
	require.Len(t, alerts, 1)
	assert.Equal(t, TypeWind, alerts[0].Type)

	s.PrecipitationTotal = 20
	alerts = newTestClassifier(t, cfg).Evaluate(s)
	require.Len(t, alerts, 2)
	assert.Equal(t, TypeWind, alerts[0].Type)
	assert.Equal(t, TypeStorm, alerts[1].Type)
	assert.Equal(t, SeveritySevere, alerts[1].Severity)
	assert.Equal(t, "storm conditions expected with strong winds up to 100 km/h and heavy precipitation (20.0 mm)", alerts[1].Message)
}

func TestTemperatureRule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Temperature.On = true
	cfg.Temperature.MinTempC = ptr(-5)
	cfg.Temperature.MaxTempC = ptr(30)

	tests := []struct {
		name     string
		min, max float64
		fires    bool
		severity Severity
		key      string
	}{
		{"comfortable", 0, 25, false, "", ""},
		{"cold at threshold", -5, 5, true, SeverityModerate, "min_temperature_c"},
		{"cold 5 below", -10, 5, true, SeverityHigh, "min_temperature_c"},
		{"hot at threshold", 20, 30, true, SeverityModerate, "max_temperature_c"},
		{"hot 5 above", 20, 35, true, SeverityHigh, "max_temperature_c"},
		{"both breached, cold wins", -12, 36, true, SeverityHigh, "min_temperature_c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := calmSummary()
			s.TempMin, s.TempMax = tt.min, tt.max

			alerts := newTestClassifier(t, cfg).Evaluate(s)
			if !tt.fires {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, TypeTemperature, alerts[0].Type)
			assert.Equal(t, tt.severity, alerts[0].Severity)
			_, ok := alerts[0].Details.Get(tt.key)
			assert.True(t, ok, "expected detail %s", tt.key)
		})
	}
}

func TestTemperatureRule_OnlyOneThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Temperature.On = true
	cfg.Temperature.MaxTempC = ptr(28)

	s := calmSummary()
	s.TempMin = -30
	s.TempMax = 29

	alerts := newTestClassifier(t, cfg).Evaluate(s)
	require.Len(t, alerts, 1)
	assert.Equal(t, "very hot temperatures expected with highs of 29°C", alerts[0].Message)
}

func TestPrecipitationRule_Severity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Precipitation.On = true
	cfg.Precipitation.ThresholdMM = 30

	tests := []struct {
		total    float64
		fires    bool
		severity Severity
	}{
		{29.9, false, ""},
		{30, true, SeverityModerate},
		{44.9, true, SeverityModerate},
		{45, true, SeverityHigh},
		{60, true, SeveritySevere},
		{65, true, SeveritySevere},
	}

	for _, tt := range tests {
		s := calmSummary()
		s.PrecipitationTotal = tt.total
		s.PrecipitationProbabilityMax = 90

		alerts := newTestClassifier(t, cfg).Evaluate(s)
		if !tt.fires {
			assert.Empty(t, alerts, "total=%v", tt.total)
			continue
		}
		require.Len(t, alerts, 1, "total=%v", tt.total)
		assert.Equal(t, tt.severity, alerts[0].Severity, "total=%v", tt.total)
	}

	s := calmSummary()
	s.PrecipitationTotal = 65
	s.PrecipitationProbabilityMax = 90
	alerts := newTestClassifier(t, cfg).Evaluate(s)
	require.Len(t, alerts, 1)
	assert.Equal(t, "heavy precipitation expected (65.0 mm) with 90% probability", alerts[0].Message)
}

func TestWeatherConditionsRule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WeatherConditions.On = true
	cfg.WeatherConditions.AlertOn = []string{"storm", "SNOW"}

	s := calmSummary()
	s.Conditions = []string{"Clear", "Snow", "Thunderstorm"}

	alerts := newTestClassifier(t, cfg).Evaluate(s)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, TypeWeatherConditions, a.Type)
	assert.Equal(t, SeverityModerate, a.Severity)
	assert.Equal(t, "adverse weather conditions expected: Snow, Thunderstorm", a.Message)

	matched, _ := a.Details.Get("weather_conditions")
	assert.Equal(t, []string{"Snow", "Thunderstorm"}, matched)

	s.Conditions = []string{"Rain"}
	assert.Empty(t, newTestClassifier(t, cfg).Evaluate(s))
}

func TestEvaluate_SkipsDisabledAndUnconfiguredRules(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wind.ThresholdKmh = 10
	cfg.Temperature.On = true
	cfg.WeatherConditions.On = true

	s := calmSummary()
	s.WindGustMax = 100
	s.TempMin = -40
	s.Conditions = []string{"Thunderstorm"}

	c := newTestClassifier(t, cfg)
	assert.Empty(t, c.Evaluate(s))
	assert.Empty(t, c.EnabledTypes())
}

func TestEvaluate_FixedOrder(t *testing.T) {
	cfg := Config{
		Wind:              WindRule{On: true, CheckDaysAhead: 1, ThresholdKmh: 50},
		Storm:             StormRule{On: true, CheckDaysAhead: 1, WindGustThresholdKmh: 70, PrecipitationThresholdMM: 20},
		Temperature:       TemperatureRule{On: true, CheckDaysAhead: 1, MaxTempC: ptr(10)},
		Precipitation:     PrecipitationRule{On: true, CheckDaysAhead: 1, ThresholdMM: 30},
		WeatherConditions: WeatherConditionsRule{On: true, CheckDaysAhead: 1, AlertOn: []string{"rain"}},
	}

	s := calmSummary()
	s.WindGustMax = 90
	s.PrecipitationTotal = 40
	s.TempMax = 12
	s.Conditions = []string{"Rain"}

	alerts := newTestClassifier(t, cfg).Evaluate(s)
	var types []Type
	for _, a := range alerts {
		types = append(types, a.Type)
	}
	assert.Equal(t, Types, types)
}

func TestEvaluate_PanicsOnMalformedSummary(t *testing.T) {
	c := newTestClassifier(t, windConfig(50))

	s := calmSummary()
	s.WindGustMax = math.NaN()
	assert.Panics(t, func() { c.Evaluate(s) })

	s = calmSummary()
	s.Date = time.Time{}
	assert.Panics(t, func() { c.Evaluate(s) })
}

type stubSummarizer struct {
	summaries map[string]map[int]weather.DailySummary
	calls     int
}

func (s *stubSummarizer) Summarize(f weather.Forecast, offset int) (weather.DailySummary, bool) {
	s.calls++
	sum, ok := s.summaries[f.LocationName][offset]
	return sum, ok
}

func windy(name string, date time.Time, gust, precip float64) weather.DailySummary {
	return weather.DailySummary{
		LocationName:       name,
		Date:               date,
		WindSpeedMax:       gust / 2,
		WindGustMax:        gust,
		PrecipitationTotal: precip,
	}
}

func TestEvaluateAll_PerRuleOffsets(t *testing.T) {
	dayTwo := tomorrow.AddDate(0, 0, 1)

	cfg := DefaultConfig()
	cfg.Wind.On = true
	cfg.Wind.CheckDaysAhead = 1
	cfg.Storm.On = true
	cfg.Storm.CheckDaysAhead = 2

	summarizer := &stubSummarizer{summaries: map[string]map[int]weather.DailySummary{
		"A": {
			1: windy("A", tomorrow, 60, 0),
			2: windy("A", dayTwo, 90, 30),
		},
		"B": {
			1: windy("B", tomorrow, 65, 0),
		},
	}}

	forecasts := []weather.Forecast{{LocationName: "A"}, {LocationName: "B"}}
	alerts := newTestClassifier(t, cfg).EvaluateAll(forecasts, summarizer)

	type got struct {
		location string
		kind     Type
		date     time.Time
	}
	var gotAlerts []got
	for _, a := range alerts {
		gotAlerts = append(gotAlerts, got{a.LocationName, a.Type, a.ForecastDate})
	}

	// storm's day-two summary is classified against every enabled rule; B has
	// no day-two data so only its day-one wind alert remains.
	assert.Equal(t, []got{
		{"A", TypeWind, tomorrow},
		{"A", TypeWind, dayTwo},
		{"A", TypeStorm, dayTwo},
		{"B", TypeWind, tomorrow},
	}, gotAlerts)
}

func TestEvaluateAll_SummarizesEachOffsetOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wind.On = true
	cfg.Storm.On = true
	cfg.Precipitation.On = true

	summarizer := &stubSummarizer{summaries: map[string]map[int]weather.DailySummary{
		"A": {1: windy("A", tomorrow, 80, 25)},
	}}

	alerts := newTestClassifier(t, cfg).EvaluateAll([]weather.Forecast{{LocationName: "A"}}, summarizer)
	assert.Equal(t, 1, summarizer.calls)

	var types []Type
	for _, a := range alerts {
		types = append(types, a.Type)
	}
	assert.Equal(t, []Type{
		TypeWind, TypeStorm,
		TypeWind, TypeStorm,
		TypeWind, TypeStorm,
	}, types, "each enabled rule classifies the shared summary")
}

func TestEvaluateAll_NoForecasts(t *testing.T) {
	alerts := newTestClassifier(t, windConfig(50)).EvaluateAll(nil, &stubSummarizer{})
	assert.Empty(t, alerts)
}

func TestSeverityRankAndSilent(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityModerate.Rank())
	assert.Less(t, SeverityModerate.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeveritySevere.Rank())

	assert.True(t, Alert{Severity: SeverityLow}.Silent())
	assert.True(t, Alert{Severity: SeverityModerate}.Silent())
	assert.False(t, Alert{Severity: SeverityHigh}.Silent())
	assert.False(t, Alert{Severity: SeveritySevere}.Silent())
}

func TestDetails_MarshalPreservesOrder(t *testing.T) {
	d := Details{{"zeta", 1.5}, {"alpha", []string{"a", "b"}}}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1.5,"alpha":["a","b"]}`, string(b))
}
