package cmd

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vzahanych/weather-alert-bot/internal/aggregator"
	"github.com/vzahanych/weather-alert-bot/internal/alert"
	"github.com/vzahanych/weather-alert-bot/internal/bot"
	"github.com/vzahanych/weather-alert-bot/internal/commentary"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/monitor"
	"github.com/vzahanych/weather-alert-bot/internal/notifier"
	"github.com/vzahanych/weather-alert-bot/internal/publisher"
	"github.com/vzahanych/weather-alert-bot/internal/service"
	"github.com/vzahanych/weather-alert-bot/internal/subscribers"
	"github.com/vzahanych/weather-alert-bot/internal/weather"
	"github.com/vzahanych/weather-alert-bot/pkg/metrics"
	"github.com/vzahanych/weather-alert-bot/pkg/telemetry"
	"go.uber.org/zap"
)

// app holds the components shared by the check and server commands.
type app struct {
	cfg        *config.Config
	clock      clockwork.Clock
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	aggregator *aggregator.Aggregator
	api        *tgbotapi.BotAPI
	notifier   *notifier.Notifier
	store      subscribers.Store
	bot        *bot.Bot
	runner     *monitor.Runner
	logger     *zap.Logger

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, tele *telemetry.Telemetry) (_ *app, err error) {
	a := &app{
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
	defer func() {
		if err != nil {
			a.close(ctx)
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.NewMetrics(a.registry)

	svc, err := service.NewForecastService(cfg, a.clock, logger, tele)
	if err != nil {
		return nil, err
	}
	a.aggregator = aggregator.NewAggregator(cfg.Weather, svc, a.clock, logger, tele)
	a.aggregator.SetMetricsRecorder(a.metrics)

	a.api, err = notifier.NewBotAPI(cfg.Telegram)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to Telegram", zap.String("bot", a.api.Self.UserName))

	a.notifier = notifier.New(a.api, cfg.Telegram, a.clock, logger)
	a.notifier.SetMetricsRecorder(a.metrics)

	store, closeStore, err := subscribers.NewStore(ctx, cfg.Subscribers, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	a.runner = monitor.NewRunner(
		cfg,
		a.aggregator,
		alert.NewClassifier(cfg.Alerts, a.clock, logger),
		weather.NewSummarizer(a.clock, loc),
		a.notifier,
		a.store,
		a.clock,
		logger,
		tele,
	)
	a.runner.SetMetricsRecorder(a.metrics)

	a.bot = bot.New(a.api, a.store, a.notifier, a.runner, cfg, a.clock, logger)

	if cfg.Kafka.Enabled {
		pub := publisher.NewKafkaPublisher(cfg.Kafka, logger)
		a.runner.SetPublisher(pub)
		a.closers = append(a.closers, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("Failed to close kafka writer", zap.Error(err))
			}
		})
		logger.Info("Alert publishing enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	if cfg.Commentary.Enabled {
		if c := newCommentator(cfg, logger); c != nil {
			a.runner.SetCommentator(c)
		}
	}

	return a, nil
}

// newCommentator returns nil when commentary cannot be configured; reports
// are then sent without a comment.
func newCommentator(cfg *config.Config, logger *zap.Logger) *commentary.Client {
	apiKey := cfg.Commentary.APIKey
	if apiKey == "" {
		key, err := cfg.APIKey("anthropic")
		if err != nil {
			logger.Warn("Commentary enabled but no api key found, continuing without it", zap.Error(err))
			return nil
		}
		apiKey = key
	}

	client, err := commentary.NewClient(cfg.Commentary, apiKey, logger)
	if err != nil {
		logger.Warn("Failed to initialize commentary", zap.Error(err))
		return nil
	}
	logger.Info("Commentary enabled", zap.String("model", cfg.Commentary.Model))
	return client
}

func (a *app) close(ctx context.Context) {
	if a.aggregator != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := a.aggregator.Stop(stopCtx); err != nil {
			a.logger.Warn("Failed to stop aggregator", zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// scheduleLocation resolves schedule.timezone, falling back to the weather
// timezone.
func scheduleLocation(cfg *config.Config) (*time.Location, error) {
	if cfg.Schedule.Timezone == "" {
		return cfg.Location()
	}
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule.timezone: %v", config.ErrConfig, err)
	}
	return loc, nil
}
