package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/vzahanych/weather-alert-bot/internal/weather"
)

const (
	reportDays      = 3
	reportMaxOffset = 3

	locationRule = "━━━━━━━━━━━━━━━━━━━━━"
	dayRule      = "┈┈┈┈┈┈┈┈┈┈┈┈┈┈┈┈┈┈┈┈┈"
)

// DaySummarizer summarizes forecasts relative to its own notion of today.
type DaySummarizer interface {
	Summarize(forecast weather.Forecast, dayOffset int) (weather.DailySummary, bool)
	Now() time.Time
}

// FormatReport renders the HTML daily report sent when a run produces no
// alerts: up to three days per location, with an optional comment line.
func FormatReport(forecasts []weather.Forecast, s DaySummarizer, comment string) string {
	now := s.Now()

	lines := []string{"<b>WEATHER REPORT</b>", ""}
	if comment != "" {
		lines = append(lines, fmt.Sprintf("<i>💬 %s</i>", html.EscapeString(comment)), "")
	}
	lines = append(lines, fmt.Sprintf("📅 <b>%s</b>", now.Format("Monday, January 02, 2006")), "")

	for _, f := range forecasts {
		lines = append(lines,
			fmt.Sprintf("<b>📍 %s</b>", html.EscapeString(f.LocationName)),
			fmt.Sprintf("<i>%s, %s</i>", html.EscapeString(f.City), html.EscapeString(f.Country)),
			"",
			locationRule,
			"",
		)

		shown := 0
		for offset := 0; offset <= reportMaxOffset && shown < reportDays; offset++ {
			daily, ok := s.Summarize(f, offset)
			if !ok {
				continue
			}
			lines = append(lines, dayBlock(daily, strings.ToUpper(dayLabel(now, offset)))...)
			shown++
		}
	}

	lines = append(lines, "✅ <i>No weather alerts</i>")
	return strings.Join(lines, "\n")
}

func dayBlock(d weather.DailySummary, label string) []string {
	wEmoji := WeatherEmoji(d.Conditions)

	lines := []string{
		fmt.Sprintf("%s <b>%s</b> %s", wEmoji, label, wEmoji),
		"",
		fmt.Sprintf("🌡️ <b>High %.0f°C</b> %s • <b>Low %.0f°C</b>", d.TempMax, TemperatureEmoji(d.TempMax), d.TempMin),
		fmt.Sprintf("<code>%s</code> <i>%.0f° → %.0f°</i>", TemperatureBar(d.TempMin, d.TempMax), d.TempMin, d.TempMax),
		"",
	}

	wind := fmt.Sprintf("%s <b>%.0f km/h</b>", windEmoji(d.WindGustMax), d.WindSpeedMax)
	desc := weather.WindDescriptor(d.WindGustMax)
	if d.WindGustMax > d.WindSpeedMax {
		wind += fmt.Sprintf(" (gusts <b>%.0f</b>) • <i>%s</i>", d.WindGustMax, desc)
	} else {
		wind += fmt.Sprintf(" • <i>%s</i>", desc)
	}
	lines = append(lines, wind)

	if d.PrecipitationTotal > 0 {
		emoji, intensity := precipitationIntensity(d.PrecipitationTotal)
		lines = append(lines, fmt.Sprintf("%s <b>%.1f mm</b> <i>(%s)</i>", emoji, d.PrecipitationTotal, intensity))
	}

	return append(lines, "", dayRule, "")
}

// dayLabel is "Today" for offset 0, otherwise the weekday name.
func dayLabel(now time.Time, offset int) string {
	if offset == 0 {
		return "Today"
	}
	return now.AddDate(0, 0, offset).Weekday().String()
}

// WeatherEmoji picks one emoji for the day, most severe condition first.
func WeatherEmoji(conditions []string) string {
	lower := make([]string, len(conditions))
	for i, c := range conditions {
		lower[i] = strings.ToLower(c)
	}
	has := func(subs ...string) bool {
		for _, c := range lower {
			for _, s := range subs {
				if strings.Contains(c, s) {
					return true
				}
			}
		}
		return false
	}

	switch {
	case has("thunder"):
		return "⛈️"
	case has("snow"):
		return "🌨️"
	case has("rain"):
		if has("heavy") {
			return "🌧️"
		}
		return "🌦️"
	case has("drizzle"):
		return "🌦️"
	case has("cloud"):
		return "☁️"
	case has("clear"):
		return "☀️"
	case has("mist", "fog"):
		return "🌫️"
	default:
		return "🌤️"
	}
}

func TemperatureEmoji(t float64) string {
	switch {
	case t >= 30:
		return "🔥"
	case t >= 20:
		return "🟠"
	case t >= 10:
		return "🟢"
	case t >= 0:
		return "🔵"
	default:
		return "🧊"
	}
}

// TemperatureBar draws the day's range on an 11-slot scale from -10°C to 40°C.
func TemperatureBar(tMin, tMax float64) string {
	normalize := func(t float64) int {
		return min(10, max(0, int((t+10)/5)))
	}

	bar := []rune(strings.Repeat("░", 11))
	for i := normalize(tMin); i <= normalize(tMax); i++ {
		bar[i] = '█'
	}
	return string(bar)
}

func windEmoji(gust float64) string {
	switch {
	case gust > 40:
		return "💨💨💨"
	case gust > 25:
		return "💨💨"
	default:
		return "💨"
	}
}

func precipitationIntensity(mm float64) (string, string) {
	switch {
	case mm > 20:
		return "🌧️🌧️🌧️", "Heavy"
	case mm > 10:
		return "🌧️🌧️", "Moderate"
	default:
		return "💧", "Light"
	}
}
