package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_alert_bot"

// Metrics holds the Prometheus collectors for the bot.
type Metrics struct {
	ForecastRequests *prometheus.CounterVec   // labels: provider, outcome={success,error}
	ForecastDuration *prometheus.HistogramVec // labels: provider
	ForecastCache    *prometheus.CounterVec   // labels: result={hit,miss}

	AlertsGenerated *prometheus.CounterVec // labels: alert_type, severity
	MessagesSent    *prometheus.CounterVec // labels: outcome={success,error}
	Subscribers     prometheus.Gauge

	CheckRuns           *prometheus.CounterVec // labels: outcome={success,error}
	CheckDuration       prometheus.Histogram
	LastSuccessfulCheck prometheus.Gauge

	HTTPRequests *prometheus.CounterVec   // labels: method, route, status
	HTTPDuration *prometheus.HistogramVec // labels: method, route
	HTTPInFlight prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newCollectors()
	reg.MustRegister(
		m.ForecastRequests,
		m.ForecastDuration,
		m.ForecastCache,
		m.AlertsGenerated,
		m.MessagesSent,
		m.Subscribers,
		m.CheckRuns,
		m.CheckDuration,
		m.LastSuccessfulCheck,
		m.HTTPRequests,
		m.HTTPDuration,
		m.HTTPInFlight,
	)
	return m
}

// NewMetricsForTesting registers with a fresh registry so tests can create
// as many instances as they like.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func newCollectors() *Metrics {
	return &Metrics{
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_requests_total",
			Help:      "Forecast provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ForecastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_request_duration_seconds",
			Help:      "Forecast provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		ForecastCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_cache_total",
			Help:      "Forecast cache lookups by result.",
		}, []string{"result"}),
		AlertsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_generated_total",
			Help:      "Alerts produced by type and severity.",
		}, []string{"alert_type", "severity"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Chat messages delivered per recipient by outcome.",
		}, []string{"outcome"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Number of chats receiving alerts in the last run.",
		}),
		CheckRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_runs_total",
			Help:      "Weather check runs by outcome.",
		}, []string{"outcome"}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Duration of a complete fetch-evaluate-dispatch run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastSuccessfulCheck: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_check_timestamp_seconds",
			Help:      "Unix time of the last successful check run.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
	}
}

// The helpers below are nil-safe so components can run without metrics.

func (m *Metrics) RecordCacheHit(ctx context.Context, cacheType string) {
	if m == nil {
		return
	}
	m.ForecastCache.WithLabelValues("hit").Inc()
}

func (m *Metrics) RecordCacheMiss(ctx context.Context, cacheType string) {
	if m == nil {
		return
	}
	m.ForecastCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) RecordForecastRequest(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ForecastRequests.WithLabelValues(provider, outcome(err)).Inc()
	m.ForecastDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) RecordAlert(alertType, severity string) {
	if m == nil {
		return
	}
	m.AlertsGenerated.WithLabelValues(alertType, severity).Inc()
}

func (m *Metrics) RecordMessages(sent, failed int) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues("success").Add(float64(sent))
	m.MessagesSent.WithLabelValues("error").Add(float64(failed))
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

func (m *Metrics) RecordCheckRun(d time.Duration, finished time.Time, err error) {
	if m == nil {
		return
	}
	m.CheckRuns.WithLabelValues(outcome(err)).Inc()
	m.CheckDuration.Observe(d.Seconds())
	if err == nil {
		m.LastSuccessfulCheck.Set(float64(finished.Unix()))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
