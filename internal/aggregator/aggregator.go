package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/service"
	"github.com/vzahanych/weather-alert-bot/internal/weather"
	"github.com/vzahanych/weather-alert-bot/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrAlreadyStarted = errors.New("aggregator already started")
	ErrStopped        = errors.New("aggregator stopped")
)

type CacheEntry struct {
	Data      *weather.Forecast
	Timestamp time.Time
}

// Task is one queued forecast fetch. Concurrent requests for the same
// location share a single task.
type Task struct {
	ID        string
	Location  config.LocationConfig
	Context   context.Context
	ResultCh  chan TaskResult
	CreatedAt time.Time
}

type TaskResult struct {
	Data  *weather.Forecast
	Error error
}

// Aggregator fetches forecasts through a bounded worker pool and caches
// them per location for cacheTTL.
type Aggregator struct {
	service  service.ForecastService
	cache    map[string]*CacheEntry
	mutex    sync.RWMutex
	cacheTTL time.Duration
	// fetchTimeout bounds a shared fetch, which no longer follows any
	// single requester's context.
	fetchTimeout time.Duration
	workers      int
	clock    clockwork.Clock
	logger   *zap.Logger
	tele     *telemetry.Telemetry
	metrics  MetricsRecorder

	runMu      sync.Mutex
	running    bool
	taskQueue  chan *Task
	shutdownCh chan struct{}
	workerWg   sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[string][]chan TaskResult
}

// MetricsRecorder interface for recording metrics
type MetricsRecorder interface {
	RecordCacheHit(ctx context.Context, cacheType string)
	RecordCacheMiss(ctx context.Context, cacheType string)
	RecordForecastRequest(provider string, d time.Duration, err error)
}

func NewAggregator(cfg config.WeatherConfig, svc service.ForecastService, clock clockwork.Clock, logger *zap.Logger, tele *telemetry.Telemetry) *Aggregator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	agg := &Aggregator{
		service:  svc,
		cache:    make(map[string]*CacheEntry),
		cacheTTL:     cfg.CacheTTL,
		fetchTimeout: cfg.Timeout,
		workers:      workers,
		clock:    clock,
		logger:   logger,
		tele:     tele,
		pending:  make(map[string][]chan TaskResult),
	}

	agg.logger.Info("Registered weather service",
		zap.String("service", svc.Name()),
		zap.Int("workers", workers),
		zap.Duration("cache_ttl", cfg.CacheTTL))

	return agg
}

// SetMetricsRecorder sets the metrics recorder for the aggregator
func (a *Aggregator) SetMetricsRecorder(metrics MetricsRecorder) {
	a.metrics = metrics
}

// Start launches the worker pool. Without it every fetch runs on the
// caller's goroutine.
func (a *Aggregator) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.running {
		return ErrAlreadyStarted
	}

	a.taskQueue = make(chan *Task, a.workers*2)
	a.shutdownCh = make(chan struct{})
	for i := 1; i <= a.workers; i++ {
		a.workerWg.Add(1)
		go NewAggregatorWorker(a, i).Start(ctx)
	}
	a.running = true

	a.logger.Info("Aggregator started", zap.Int("workers", a.workers))
	return nil
}

// Stop signals the workers and waits for them until ctx expires. Tasks still
// queued are failed with ErrStopped.
func (a *Aggregator) Stop(ctx context.Context) error {
	a.runMu.Lock()
	if !a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = false
	close(a.shutdownCh)
	a.runMu.Unlock()

	done := make(chan struct{})
	go func() {
		a.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}

	for {
		select {
		case task := <-a.taskQueue:
			a.notifyPendingTasks(cacheKey(task.Location), TaskResult{Error: ErrStopped})
		default:
			a.logger.Info("Aggregator stopped")
			return nil
		}
	}
}

// GetForecast returns the cached forecast for location or fetches a fresh one.
func (a *Aggregator) GetForecast(ctx context.Context, location config.LocationConfig) (*weather.Forecast, error) {
	tracer := a.tele.GetTracer()
	ctx, span := tracer.Start(ctx, "aggregator.GetForecast")
	defer span.End()

	key := cacheKey(location)
	span.SetAttributes(attribute.String("location", location.Name))

	if cached := a.getFromCache(key); cached != nil {
		a.logger.Debug("Cache hit", zap.String("cache_key", key))
		span.SetAttributes(attribute.Bool("cache_hit", true))
		if a.metrics != nil {
			a.metrics.RecordCacheHit(ctx, "forecast")
		}
		return cached, nil
	}

	span.SetAttributes(attribute.Bool("cache_hit", false))
	if a.metrics != nil {
		a.metrics.RecordCacheMiss(ctx, "forecast")
	}

	var (
		data *weather.Forecast
		err  error
	)
	if queue, shutdown, ok := a.pool(); ok {
		data, err = a.submit(ctx, location, queue, shutdown)
	} else {
		data, err = a.fetchForecast(ctx, location)
		if err == nil {
			a.setCache(key, data)
		}
	}
	if err != nil {
		span.SetAttributes(attribute.Bool("success", false))
		a.tele.RecordError(ctx, err, map[string]any{"location": location.Name})
		return nil, err
	}

	span.SetAttributes(attribute.Bool("success", true), attribute.Int("samples", len(data.Samples)))
	return data, nil
}

// GetForecasts fetches every location concurrently. Failed locations are
// logged and skipped; the result keeps configuration order.
func (a *Aggregator) GetForecasts(ctx context.Context, locations []config.LocationConfig) []*weather.Forecast {
	results := make([]*weather.Forecast, len(locations))

	var wg sync.WaitGroup
	for i, loc := range locations {
		i, loc := i, loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := a.GetForecast(ctx, loc)
			if err != nil {
				a.logger.Error("Failed to fetch forecast",
					zap.String("location", loc.Name),
					zap.Error(err))
				return
			}
			results[i] = data
		}()
	}
	wg.Wait()

	forecasts := make([]*weather.Forecast, 0, len(results))
	for _, f := range results {
		if f != nil {
			forecasts = append(forecasts, f)
		}
	}

	a.logger.Info("Forecasts fetched",
		zap.Int("requested", len(locations)),
		zap.Int("fetched", len(forecasts)))

	return forecasts
}

func (a *Aggregator) pool() (chan *Task, chan struct{}, bool) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.taskQueue, a.shutdownCh, a.running
}

func (a *Aggregator) submit(ctx context.Context, location config.LocationConfig, queue chan *Task, shutdown chan struct{}) (*weather.Forecast, error) {
	key := cacheKey(location)
	ch := make(chan TaskResult, 1)

	a.pendingMu.Lock()
	waiters, inflight := a.pending[key]
	a.pending[key] = append(waiters, ch)
	a.pendingMu.Unlock()

	if !inflight {
		// The task serves every waiter, so it keeps the first requester's
		// values but not its cancellation.
		task := &Task{
			ID:        uuid.NewString(),
			Location:  location,
			Context:   context.WithoutCancel(ctx),
			ResultCh:  ch,
			CreatedAt: a.clock.Now(),
		}
		go a.enqueue(task, queue, shutdown)
	}

	select {
	case res := <-ch:
		return res.Data, res.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Aggregator) enqueue(task *Task, queue chan *Task, shutdown chan struct{}) {
	select {
	case queue <- task:
		a.logger.Debug("Task queued", zap.String("task_id", task.ID), zap.String("location", task.Location.Name))
	case <-shutdown:
		a.notifyPendingTasks(cacheKey(task.Location), TaskResult{Error: ErrStopped})
	}
}

func (a *Aggregator) notifyPendingTasks(key string, result TaskResult) {
	a.pendingMu.Lock()
	waiters := a.pending[key]
	delete(a.pending, key)
	a.pendingMu.Unlock()

	for _, ch := range waiters {
		ch <- result
	}
}

func (a *Aggregator) fetchForecast(ctx context.Context, location config.LocationConfig) (*weather.Forecast, error) {
	tracer := a.tele.GetTracer()
	ctx, span := tracer.Start(ctx, "aggregator.fetchForecast")
	defer span.End()

	span.SetAttributes(
		attribute.String("location", location.Name),
		attribute.String("service", a.service.Name()),
	)

	start := a.clock.Now()
	data, err := a.service.GetForecast(ctx, location)
	if a.metrics != nil {
		a.metrics.RecordForecastRequest(a.service.Name(), a.clock.Since(start), err)
	}
	if err != nil {
		span.SetAttributes(attribute.Bool("success", false))
		return nil, fmt.Errorf("%s: %w", location.Name, err)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return data, nil
}

func (a *Aggregator) getFromCache(key string) *weather.Forecast {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	entry, exists := a.cache[key]
	if !exists {
		return nil
	}

	if a.clock.Since(entry.Timestamp) > a.cacheTTL {
		return nil
	}

	return entry.Data
}

func (a *Aggregator) setCache(key string, data *weather.Forecast) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.cache[key] = &CacheEntry{
		Data:      data,
		Timestamp: a.clock.Now(),
	}
}

func (a *Aggregator) ClearCache() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.cache = make(map[string]*CacheEntry)
}

func (a *Aggregator) GetCacheStats() map[string]interface{} {
	a.mutex.RLock()
	size := len(a.cache)
	a.mutex.RUnlock()

	_, _, running := a.pool()

	return map[string]interface{}{
		"cache_size": size,
		"cache_ttl":  a.cacheTTL.String(),
		"service":    a.service.Name(),
		"workers":    a.workers,
		"running":    running,
	}
}

func cacheKey(location config.LocationConfig) string {
	return strings.ToLower(location.Name)
}
