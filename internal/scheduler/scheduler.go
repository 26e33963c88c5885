package scheduler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

type timeOfDay struct {
	hour, minute int
}

// Scheduler runs a job at fixed times of day in a timezone.
type Scheduler struct {
	times      []timeOfDay
	location   *time.Location
	runOnStart bool
	job        Job
	clock      clockwork.Clock
	logger     *zap.Logger
}

// New parses times as "HH:MM" in location. Duplicate times run once.
func New(times []string, location *time.Location, runOnStart bool, job Job, clock clockwork.Clock, logger *zap.Logger) (*Scheduler, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("no schedule times configured")
	}
	if location == nil {
		location = time.Local
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	parsed := make([]timeOfDay, 0, len(times))
	for _, s := range times {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule time %q: %w", s, err)
		}
		parsed = append(parsed, timeOfDay{hour: t.Hour(), minute: t.Minute()})
	}
	slices.SortFunc(parsed, func(a, b timeOfDay) int {
		return (a.hour*60 + a.minute) - (b.hour*60 + b.minute)
	})
	parsed = slices.Compact(parsed)

	return &Scheduler{
		times:      parsed,
		location:   location,
		runOnStart: runOnStart,
		job:        job,
		clock:      clock,
		logger:     logger.With(zap.String("component", "scheduler")),
	}, nil
}

// Next returns the first scheduled time strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	local := now.In(s.location)
	for day := 0; day <= 1; day++ {
		for _, t := range s.times {
			candidate := time.Date(local.Year(), local.Month(), local.Day()+day, t.hour, t.minute, 0, 0, s.location)
			if candidate.After(local) {
				return candidate
			}
		}
	}
	// unreachable with at least one time configured
	return local.AddDate(0, 0, 1)
}

// Run waits for each scheduled time and runs the job until ctx is done.
// Job errors are logged and do not stop the schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started",
		zap.Int("times", len(s.times)),
		zap.String("timezone", s.location.String()),
		zap.Bool("run_on_start", s.runOnStart))

	if s.runOnStart {
		s.runJob(ctx)
	}

	for {
		now := s.clock.Now()
		next := s.Next(now)
		wait := next.Sub(now)
		s.logger.Info("Next check scheduled", zap.Time("at", next), zap.Duration("in", wait))

		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case <-s.clock.After(wait):
			s.runJob(ctx)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context) {
	start := s.clock.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error("Scheduled check failed", zap.Error(err))
		return
	}
	s.logger.Info("Scheduled check completed", zap.Duration("duration", s.clock.Since(start)))
}
