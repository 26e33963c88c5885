package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vzahanych/weather-alert-bot/pkg/metrics"
)

const unmatchedRoute = "unmatched"

// MetricsMiddleware records request count, latency and in-flight requests.
// Routes are labelled by their pattern so path parameters do not explode
// label cardinality.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		m.HTTPInFlight.Inc()
		defer m.HTTPInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method

		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
