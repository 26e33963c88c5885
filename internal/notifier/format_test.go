package notifier

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vzahanych/weather-alert-bot/internal/alert"
	"github.com/vzahanych/weather-alert-bot/internal/weather"
)

func windAlert() alert.Alert {
	return alert.Alert{
		LocationName: "Home",
		Type:         alert.TypeWind,
		Severity:     alert.SeverityHigh,
		Message:      "high winds expected with gusts up to 62 km/h",
		Details: alert.Details{
			{Key: "max_wind_speed_kmh", Value: 41.04},
			{Key: "max_wind_gust_kmh", Value: 62.0},
			{Key: "threshold_kmh", Value: 50.0},
		},
		ForecastDate: time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC),
	}
}

func TestFormatAlert_WithEmoji(t *testing.T) {
	want := strings.Join([]string{
		"💨 *WIND ALERT* 🟠",
		"",
		"📍 *Location:* Home",
		"📅 *Date:* Friday, June 21",
		"",
		"*high winds expected with gusts up to 62 km/h*",
		"",
		"*Details:*",
		"  • Max Wind Speed Kmh: 41.0",
		"  • Max Wind Gust Kmh: 62.0",
		"  • Threshold Kmh: 50.0",
	}, "\n")

	assert.Equal(t, want, FormatAlert(windAlert(), true))
}

func TestFormatAlert_WithoutEmoji(t *testing.T) {
	out := FormatAlert(windAlert(), false)
	assert.True(t, strings.HasPrefix(out, "*WIND ALERT* [HIGH]\n"))
}

func TestFormatAlert_ListDetails(t *testing.T) {
	a := alert.Alert{
		LocationName: "Home",
		Type:         alert.TypeWeatherConditions,
		Severity:     alert.SeverityModerate,
		Message:      "adverse weather conditions expected: Fog, Thunderstorm",
		Details: alert.Details{
			{Key: "weather_conditions", Value: []string{"Fog", "Thunderstorm"}},
		},
		ForecastDate: time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC),
	}

	out := FormatAlert(a, true)
	assert.Contains(t, out, "⚠️ *WEATHER_CONDITIONS ALERT* 🟡")
	assert.Contains(t, out, "  • Weather Conditions: Fog, Thunderstorm")
}

func TestFormatAlert_ConditionsAreCommaJoined(t *testing.T) {
	cfg := alert.DefaultConfig()
	cfg.WeatherConditions.On = true
	cfg.WeatherConditions.AlertOn = []string{"storm", "snow"}

	summary := weather.DailySummary{
		LocationName: "Home",
		Date:         time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC),
		Conditions:   []string{"Clouds", "Snow", "Thunderstorm"},
	}
	alerts := alert.NewClassifier(cfg, clockwork.NewFakeClock(), nil).Evaluate(summary)
	require.Len(t, alerts, 1)

	out := FormatAlert(alerts[0], false)
	assert.Contains(t, out, "*adverse weather conditions expected: Snow, Thunderstorm*")
	assert.Contains(t, out, "  • Weather Conditions: Snow, Thunderstorm")
	assert.Contains(t, out, "  • Alert On: storm, snow")
}

func TestWeatherEmoji(t *testing.T) {
	tests := []struct {
		conditions []string
		want       string
	}{
		{[]string{"Clear", "Thunderstorm"}, "⛈️"},
		{[]string{"Rain", "Snow"}, "🌨️"},
		{[]string{"heavy rain"}, "🌧️"},
		{[]string{"Rain"}, "🌦️"},
		{[]string{"Drizzle"}, "🌦️"},
		{[]string{"Clouds"}, "☁️"},
		{[]string{"Clear"}, "☀️"},
		{[]string{"Mist"}, "🌫️"},
		{nil, "🌤️"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeatherEmoji(tt.conditions), "%v", tt.conditions)
	}
}

func TestTemperatureEmoji(t *testing.T) {
	assert.Equal(t, "🔥", TemperatureEmoji(30))
	assert.Equal(t, "🟠", TemperatureEmoji(20))
	assert.Equal(t, "🟢", TemperatureEmoji(10))
	assert.Equal(t, "🔵", TemperatureEmoji(0))
	assert.Equal(t, "🧊", TemperatureEmoji(-0.5))
}

func TestTemperatureBar(t *testing.T) {
	assert.Equal(t, "░░░██░░░░░░", TemperatureBar(5, 14))
	assert.Equal(t, "█░░░░░░░░░░", TemperatureBar(-30, -12))
	assert.Equal(t, "░░░░░░░░░░█", TemperatureBar(45, 50))
	assert.Equal(t, "███████████", TemperatureBar(-10, 40))
}

func TestFormatReport(t *testing.T) {
	// Friday 21 June 2024, 09:00 UTC
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 21, 9, 0, 0, 0, time.UTC))
	s := weather.NewSummarizer(clock, time.UTC)

	at := func(day, hour int) time.Time { return time.Date(2024, 6, day, hour, 0, 0, 0, time.UTC) }
	forecast := weather.Forecast{
		LocationName: "Home",
		City:         "London",
		Country:      "GB",
		Samples: []weather.Sample{
			{Time: at(21, 12), TempMin: 12, TempMax: 18, Temperature: 15, WindSpeedKmh: 20, WindGustKmh: 30, Condition: "Clouds"},
			{Time: at(22, 12), TempMin: 10, TempMax: 14, Temperature: 12, WindSpeedKmh: 45, WindGustKmh: 45, PrecipitationMM: 12.5, Condition: "Rain"},
			{Time: at(24, 12), TempMin: 20, TempMax: 31, Temperature: 25, WindSpeedKmh: 5, Condition: "Clear"},
			{Time: at(25, 12), TempMin: 20, TempMax: 31, Temperature: 25, WindSpeedKmh: 5, Condition: "Clear"},
		},
	}

	out := FormatReport([]weather.Forecast{forecast}, s, "Pack an umbrella & smile")
	lines := strings.Split(out, "\n")

	assert.Equal(t, "<b>WEATHER REPORT</b>", lines[0])
	assert.Equal(t, "<i>💬 Pack an umbrella &amp; smile</i>", lines[2])
	assert.Equal(t, "📅 <b>Friday, June 21, 2024</b>", lines[4])
	assert.Contains(t, out, "<b>📍 Home</b>\n<i>London, GB</i>\n\n"+locationRule)

	assert.Contains(t, out, "☁️ <b>TODAY</b> ☁️")
	assert.Contains(t, out, "🌡️ <b>High 18°C</b> 🟢 • <b>Low 12°C</b>")
	assert.Contains(t, out, "<code>░░░░██░░░░░</code> <i>12° → 18°</i>")
	assert.Contains(t, out, "💨💨 <b>20 km/h</b> (gusts <b>30</b>) • <i>Moderate wind</i>")

	assert.Contains(t, out, "🌦️ <b>SATURDAY</b> 🌦️")
	assert.Contains(t, out, "💨💨💨 <b>45 km/h</b> • <i>Fresh wind</i>")
	assert.Contains(t, out, "🌧️🌧️ <b>12.5 mm</b> <i>(Moderate)</i>")

	assert.NotContains(t, out, "SUNDAY", "days without data are skipped")
	assert.Contains(t, out, "☀️ <b>MONDAY</b> ☀️")
	assert.NotContains(t, out, "TUESDAY", "offsets beyond three days are not shown")

	assert.Equal(t, 1, strings.Count(out, "mm</b>"), "dry days have no precipitation line")
	assert.True(t, strings.HasSuffix(out, "✅ <i>No weather alerts</i>"))
}

func TestFormatReport_NoComment(t *testing.T) {
	s := weather.NewSummarizer(clockwork.NewFakeClockAt(time.Date(2024, 6, 21, 9, 0, 0, 0, time.UTC)), time.UTC)
	out := FormatReport(nil, s, "")

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "📅 <b>Friday, June 21, 2024</b>", lines[2])
}
