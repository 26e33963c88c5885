package weather

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
)

// Summarize reduces the samples of forecast that fall on the local calendar
// date now+dayOffset (in now's location) into a DailySummary. It reports
// false when no sample falls on that date.
//
// dayOffset must not be negative.
func Summarize(forecast Forecast, dayOffset int, now time.Time) (DailySummary, bool) {
	if dayOffset < 0 {
		panic(fmt.Sprintf("weather: negative day offset %d", dayOffset))
	}

	loc := now.Location()
	target := time.Date(now.Year(), now.Month(), now.Day()+dayOffset, 0, 0, 0, 0, loc)

	var samples []Sample
	for _, s := range forecast.Samples {
		if sameDate(s.Time.In(loc), target) {
			samples = append(samples, s)
		}
	}
	if len(samples) == 0 {
		return DailySummary{}, false
	}

	summary := DailySummary{
		LocationName: forecast.LocationName,
		Date:         target,
		TempMin:      math.Inf(1),
		TempMax:      math.Inf(-1),
		Samples:      samples,
	}

	var tempSum float64
	conditions := make([]string, 0, len(samples))
	for _, s := range samples {
		summary.TempMin = math.Min(summary.TempMin, s.TempMin)
		summary.TempMax = math.Max(summary.TempMax, s.TempMax)
		summary.WindSpeedMax = math.Max(summary.WindSpeedMax, s.WindSpeedKmh)
		summary.WindGustMax = math.Max(summary.WindGustMax, s.WindGustKmh)
		summary.PrecipitationTotal += s.PrecipitationMM
		summary.PrecipitationProbabilityMax = math.Max(summary.PrecipitationProbabilityMax, s.PrecipitationProbability)
		tempSum += s.Temperature

		if s.Condition != "" {
			conditions = append(conditions, s.Condition)
		}
	}
	summary.TempAvg = tempSum / float64(len(samples))

	slices.Sort(conditions)
	summary.Conditions = slices.Compact(conditions)

	return summary, true
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Summarizer binds Summarize to a clock and the timezone that defines
// calendar days.
type Summarizer struct {
	clock    clockwork.Clock
	location *time.Location
}

func NewSummarizer(clock clockwork.Clock, location *time.Location) *Summarizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if location == nil {
		location = time.Local
	}
	return &Summarizer{clock: clock, location: location}
}

// Now returns the current time in the summarizer's timezone.
func (s *Summarizer) Now() time.Time {
	return s.clock.Now().In(s.location)
}

func (s *Summarizer) Location() *time.Location {
	return s.location
}

func (s *Summarizer) Summarize(forecast Forecast, dayOffset int) (DailySummary, bool) {
	return Summarize(forecast, dayOffset, s.Now())
}
