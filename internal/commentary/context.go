package commentary

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vzahanych/weather-alert-bot/internal/weather"
)

const (
	contextDays     = 3
	tempTrendDelta  = 5.0
	windTrendDelta  = 15.0
	unknownLocation = "Unknown"
)

// DaySummarizer summarizes forecasts relative to its own notion of today.
type DaySummarizer interface {
	Summarize(forecast weather.Forecast, dayOffset int) (weather.DailySummary, bool)
	Now() time.Time
}

// BuildContext describes the next three days for the prompt, e.g.
// "Location: Home, Saturday in June (weekend); Today: 12-18°C, wind 30km/h (Moderate wind) (Clouds)".
// Trends compare each day with the previous day of the same location.
func BuildContext(forecasts []weather.Forecast, s DaySummarizer) string {
	now := s.Now()

	name := unknownLocation
	if len(forecasts) > 0 {
		name = forecasts[0].LocationName
	}

	header := fmt.Sprintf("Location: %s, %s in %s", name, now.Weekday(), now.Month())
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		header += " (weekend)"
	}
	parts := []string{header}

	for _, f := range forecasts {
		var prev *weather.DailySummary
		for offset := 0; offset < contextDays; offset++ {
			daily, ok := s.Summarize(f, offset)
			if !ok {
				continue
			}
			parts = append(parts, describeDay(daily, prev, dayName(now, offset)))
			prev = &daily
		}
	}

	return strings.Join(parts, "; ")
}

func describeDay(d weather.DailySummary, prev *weather.DailySummary, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %.0f-%.0f°C", name, d.TempMin, d.TempMax)

	if prev != nil {
		if delta := d.TempMax - prev.TempMax; math.Abs(delta) >= tempTrendDelta {
			trend := "cooler"
			if delta > 0 {
				trend = "warmer"
			}
			fmt.Fprintf(&b, " (%.0f° %s)", math.Abs(delta), trend)
		}
	}

	fmt.Fprintf(&b, ", wind %.0fkm/h (%s)", d.WindGustMax, weather.WindDescriptor(d.WindGustMax))
	if prev != nil {
		if delta := d.WindGustMax - prev.WindGustMax; math.Abs(delta) >= windTrendDelta {
			if delta > 0 {
				b.WriteString(" increasing")
			} else {
				b.WriteString(" decreasing")
			}
		}
	}

	if d.PrecipitationTotal > 0 {
		fmt.Fprintf(&b, ", rain %.1fmm", d.PrecipitationTotal)
	}
	if len(d.Conditions) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(d.Conditions, ", "))
	}
	return b.String()
}

func dayName(now time.Time, offset int) string {
	if offset == 0 {
		return "Today"
	}
	return now.AddDate(0, 0, offset).Weekday().String()
}
