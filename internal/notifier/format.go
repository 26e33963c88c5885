package notifier

import (
	"fmt"
	"strings"

	"github.com/vzahanych/weather-alert-bot/internal/alert"
)

var typeEmoji = map[alert.Type]string{
	alert.TypeWind:              "💨",
	alert.TypeStorm:             "⛈️",
	alert.TypeTemperature:       "🌡️",
	alert.TypePrecipitation:     "🌧️",
	alert.TypeWeatherConditions: "⚠️",
}

var severityEmoji = map[alert.Severity]string{
	alert.SeverityLow:      "🟢",
	alert.SeverityModerate: "🟡",
	alert.SeverityHigh:     "🟠",
	alert.SeveritySevere:   "🔴",
}

func lookup[K comparable](m map[K]string, k K) string {
	if v, ok := m[k]; ok {
		return v
	}
	return "⚠️"
}

// FormatAlert renders an alert as a Telegram Markdown message.
func FormatAlert(a alert.Alert, useEmoji bool) string {
	var lines []string

	title := strings.ToUpper(string(a.Type))
	if useEmoji {
		lines = append(lines, fmt.Sprintf("%s *%s ALERT* %s", lookup(typeEmoji, a.Type), title, lookup(severityEmoji, a.Severity)))
	} else {
		lines = append(lines, fmt.Sprintf("*%s ALERT* [%s]", title, strings.ToUpper(string(a.Severity))))
	}
	lines = append(lines, "")

	lines = append(lines,
		"📍 *Location:* "+a.LocationName,
		"📅 *Date:* "+a.ForecastDate.Format("Monday, January 02"),
		"",
		"*"+a.Message+"*",
		"",
	)

	if len(a.Details) > 0 {
		lines = append(lines, "*Details:*")
		for _, d := range a.Details {
			lines = append(lines, fmt.Sprintf("  • %s: %s", titleKey(d.Key), formatValue(d.Value)))
		}
	}

	return strings.Join(lines, "\n")
}

// titleKey turns "max_wind_gust_kmh" into "Max Wind Gust Kmh".
func titleKey(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%.1f", val)
	case float32:
		return fmt.Sprintf("%.1f", val)
	case []string:
		return strings.Join(val, ", ")
	default:
		return fmt.Sprint(val)
	}
}
