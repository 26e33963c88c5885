package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordCacheHit(context.Background(), "forecast")

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.Panics(t, func() { NewMetrics(reg) }, "duplicate registration must panic")
}

func TestRecorders(t *testing.T) {
	m := NewMetricsForTesting()
	ctx := context.Background()

	m.RecordCacheHit(ctx, "forecast")
	m.RecordCacheMiss(ctx, "forecast")
	m.RecordCacheMiss(ctx, "forecast")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForecastCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ForecastCache.WithLabelValues("miss")))

	m.RecordForecastRequest("openweathermap", 200*time.Millisecond, nil)
	m.RecordForecastRequest("openweathermap", time.Second, errors.New("down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForecastRequests.WithLabelValues("openweathermap", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForecastRequests.WithLabelValues("openweathermap", "error")))

	m.RecordAlert("wind", "severe")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsGenerated.WithLabelValues("wind", "severe")))

	m.RecordMessages(3, 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.MessagesSent.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesSent.WithLabelValues("error")))

	m.SetSubscribers(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Subscribers))

	finished := time.Unix(1700000000, 0)
	m.RecordCheckRun(2*time.Second, finished, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckRuns.WithLabelValues("success")))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.LastSuccessfulCheck))

	m.RecordCheckRun(time.Second, finished.Add(time.Hour), errors.New("boom"))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.LastSuccessfulCheck))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCacheHit(context.Background(), "x")
		m.RecordForecastRequest("p", time.Second, nil)
		m.RecordAlert("wind", "low")
		m.RecordMessages(1, 1)
		m.SetSubscribers(1)
		m.RecordCheckRun(time.Second, time.Now(), nil)
	})
}
