package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/vzahanych/weather-alert-bot/internal/alert"
	"github.com/vzahanych/weather-alert-bot/internal/commentary"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/notifier"
	"github.com/vzahanych/weather-alert-bot/internal/subscribers"
	"github.com/vzahanych/weather-alert-bot/internal/weather"
	"github.com/vzahanych/weather-alert-bot/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrNoForecasts      = errors.New("no forecasts retrieved")
	ErrUnknownLocation  = errors.New("unknown location")
	ErrNegativeDayShift = errors.New("days_ahead must not be negative")
)

// ForecastSource fetches forecasts for configured locations.
type ForecastSource interface {
	GetForecast(ctx context.Context, location config.LocationConfig) (*weather.Forecast, error)
	GetForecasts(ctx context.Context, locations []config.LocationConfig) []*weather.Forecast
}

type PendingProcessor interface {
	ProcessPending(ctx context.Context) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, alerts []alert.Alert) error
}

type Commentator interface {
	Comment(ctx context.Context, weatherSummary string) string
}

type MetricsRecorder interface {
	RecordAlert(alertType, severity string)
	SetSubscribers(n int)
	RecordCheckRun(d time.Duration, finished time.Time, err error)
}

type RunOptions struct {
	// DevChatID, when set, replaces every recipient with this one chat.
	DevChatID string
	// DryRun logs what would be sent instead of sending it.
	DryRun bool
}

type RunResult struct {
	RunID      uuid.UUID `json:"run_id"`
	Alerts     int       `json:"alerts"`
	Recipients int       `json:"recipients"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
}

type Evaluation struct {
	Forecasts []weather.Forecast
	Alerts    []alert.Alert
}

type Runner struct {
	cfg        *config.Config
	source     ForecastSource
	classifier *alert.Classifier
	summarizer *weather.Summarizer
	notifier   *notifier.Notifier
	store      subscribers.Store

	pending     PendingProcessor
	publisher   Publisher
	commentator Commentator
	metrics     MetricsRecorder

	lastEvaluation atomic.Int64

	clock  clockwork.Clock
	logger *zap.Logger
	tele   *telemetry.Telemetry
}

func NewRunner(
	cfg *config.Config,
	source ForecastSource,
	classifier *alert.Classifier,
	summarizer *weather.Summarizer,
	n *notifier.Notifier,
	store subscribers.Store,
	clock clockwork.Clock,
	logger *zap.Logger,
	tele *telemetry.Telemetry,
) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		classifier: classifier,
		summarizer: summarizer,
		notifier:   n,
		store:      store,
		clock:      clock,
		logger:     logger.With(zap.String("component", "monitor")),
		tele:       tele,
	}
}

// SetPendingProcessor enables auto-subscribing pending chats at the start of
// each run. Leave it unset while a long-polling bot owns the update stream.
func (r *Runner) SetPendingProcessor(p PendingProcessor) { r.pending = p }

func (r *Runner) SetPublisher(p Publisher) { r.publisher = p }

func (r *Runner) SetCommentator(c Commentator) { r.commentator = c }

func (r *Runner) SetMetricsRecorder(m MetricsRecorder) { r.metrics = m }

// LastEvaluation returns when an evaluation last produced forecasts, or the
// zero time if none has yet.
func (r *Runner) LastEvaluation() time.Time {
	ns := r.lastEvaluation.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Evaluate fetches every configured location and classifies the forecasts
// without dispatching anything.
func (r *Runner) Evaluate(ctx context.Context) (Evaluation, error) {
	ctx, span := r.tele.GetTracer().Start(ctx, "monitor.evaluate",
		trace.WithAttributes(attribute.Int("locations", len(r.cfg.Locations))))
	defer span.End()

	r.logger.Info("Fetching weather forecasts", zap.Int("locations", len(r.cfg.Locations)))
	fetched := r.source.GetForecasts(ctx, r.cfg.Locations)
	if len(fetched) == 0 {
		span.SetStatus(codes.Error, ErrNoForecasts.Error())
		return Evaluation{}, ErrNoForecasts
	}

	forecasts := make([]weather.Forecast, 0, len(fetched))
	for _, f := range fetched {
		forecasts = append(forecasts, *f)
	}
	r.logger.Debug("Retrieved forecasts", zap.Int("count", len(forecasts)))

	alerts := r.classifier.EvaluateAll(forecasts, r.summarizer)
	for _, a := range alerts {
		if r.metrics != nil {
			r.metrics.RecordAlert(string(a.Type), string(a.Severity))
		}
	}

	r.lastEvaluation.Store(r.clock.Now().UnixNano())
	span.SetAttributes(attribute.Int("forecasts", len(forecasts)), attribute.Int("alerts", len(alerts)))
	return Evaluation{Forecasts: forecasts, Alerts: alerts}, nil
}

// Check runs an evaluation and returns only the alerts.
func (r *Runner) Check(ctx context.Context) ([]alert.Alert, error) {
	ev, err := r.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return ev.Alerts, nil
}

// Summary returns the daily summary for the named location at daysAhead.
// It reports false when the forecast has no samples for that day.
func (r *Runner) Summary(ctx context.Context, name string, daysAhead int) (weather.DailySummary, bool, error) {
	if daysAhead < 0 {
		return weather.DailySummary{}, false, ErrNegativeDayShift
	}
	loc, ok := r.cfg.FindLocation(name)
	if !ok {
		return weather.DailySummary{}, false, fmt.Errorf("%w: %s", ErrUnknownLocation, name)
	}

	f, err := r.source.GetForecast(ctx, loc)
	if err != nil {
		return weather.DailySummary{}, false, err
	}
	s, ok := r.summarizer.Summarize(*f, daysAhead)
	return s, ok, nil
}

// Run performs one complete check: pending subscriptions, fetch, evaluate,
// publish, then either the alerts or the daily report to every recipient.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (result RunResult, err error) {
	result.RunID = uuid.New()
	logger := r.logger.With(zap.String("run_id", result.RunID.String()))
	start := r.clock.Now()

	ctx, span := r.tele.GetTracer().Start(ctx, "monitor.run",
		trace.WithAttributes(attribute.String("run.id", result.RunID.String()), attribute.Bool("run.dry", opts.DryRun)))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			r.tele.RecordError(ctx, err, map[string]any{"run_id": result.RunID.String()})
		}
		span.End()
		if r.metrics != nil {
			r.metrics.RecordCheckRun(r.clock.Since(start), r.clock.Now(), err)
		}
	}()

	if r.pending != nil {
		logger.Info("Checking for new subscribers")
		added, err := r.pending.ProcessPending(ctx)
		if err != nil {
			logger.Warn("Failed to process pending messages", zap.Error(err))
		} else if added > 0 {
			logger.Info("Auto-subscribed new users", zap.Int("count", added))
		}
	}

	ev, err := r.Evaluate(ctx)
	if errors.Is(err, ErrNoForecasts) {
		logger.Warn("No forecasts retrieved")
		return result, nil
	}
	if err != nil {
		return result, err
	}

	result.Alerts = len(ev.Alerts)
	for _, a := range ev.Alerts {
		logger.Info("Alert generated",
			zap.String("alert_type", string(a.Type)),
			zap.String("location", a.LocationName),
			zap.String("severity", string(a.Severity)),
			zap.String("message", a.Message))
	}

	if r.publisher != nil && !opts.DryRun {
		if err := r.publisher.Publish(ctx, ev.Alerts); err != nil {
			logger.Warn("Failed to publish alerts", zap.Error(err))
		}
	}

	recipients, err := r.recipients(ctx, opts, logger)
	if err != nil {
		return result, err
	}
	result.Recipients = len(recipients)
	if len(recipients) == 0 {
		logger.Warn("No chat ids configured and no subscribers")
		return result, nil
	}
	logger.Info("Sending to recipients", zap.Int("recipients", len(recipients)))

	var sent notifier.Results
	if len(ev.Alerts) > 0 {
		logger.Info("Sending alerts", zap.Int("alerts", len(ev.Alerts)))
		if opts.DryRun {
			for _, a := range ev.Alerts {
				logger.Info("Dry run, alert not sent", zap.String("text", notifier.FormatAlert(a, r.notifier.UseEmoji())))
			}
			return result, nil
		}
		sent, err = r.notifier.SendAlerts(ctx, recipients, ev.Alerts)
		if err != nil {
			return result, fmt.Errorf("send alerts: %w", err)
		}
	} else {
		logger.Info("No alerts triggered, sending weather report")
		report := notifier.FormatReport(ev.Forecasts, r.summarizer, r.comment(ctx, ev.Forecasts))
		if opts.DryRun {
			logger.Info("Dry run, report not sent", zap.String("text", report))
			return result, nil
		}
		sent = r.notifier.SendReport(ctx, recipients, report)
	}

	result.Sent = len(sent.Success)
	result.Failed = len(sent.Failed)
	logger.Info("Messages sent", zap.Int("success", result.Sent), zap.Int("failed", result.Failed))
	for _, f := range sent.Failed {
		logger.Error("Failed to send message", zap.String("chat_id", f.ChatID), zap.Error(f.Err))
	}
	return result, nil
}

func (r *Runner) recipients(ctx context.Context, opts RunOptions, logger *zap.Logger) ([]string, error) {
	if opts.DevChatID != "" {
		logger.Info("Dev mode, sending only to one chat", zap.String("chat_id", opts.DevChatID))
		return []string{opts.DevChatID}, nil
	}

	ids, err := subscribers.AllChatIDs(ctx, r.store, r.cfg.Telegram.ChatIDs)
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.SetSubscribers(len(ids))
	}
	return ids, nil
}

func (r *Runner) comment(ctx context.Context, forecasts []weather.Forecast) string {
	if r.commentator == nil {
		return ""
	}
	return r.commentator.Comment(ctx, commentary.BuildContext(forecasts, r.summarizer))
}
