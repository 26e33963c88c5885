package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/vzahanych/weather-alert-bot/internal/server/utils"
	"github.com/vzahanych/weather-alert-bot/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TelemetryMiddleware starts a server span per request, continuing any
// trace context the caller propagated.
func TelemetryMiddleware(logger *zap.Logger, tele *telemetry.Telemetry) gin.HandlerFunc {
	propagator := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		spanName := c.Request.Method + " " + route

		ctx, span := tele.GetTracer().Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("request.id", utils.GetRequestIDFromGinContext(c)),
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", c.Request.URL.Path),
				attribute.String("user_agent", c.Request.UserAgent()),
				attribute.String("remote_addr", c.ClientIP()),
			),
		)
		defer span.End()

		c.Set(utils.SpanContextKey, ctx)
		c.Request = c.Request.WithContext(ctx)

		if tele.IsEnabled() {
			logger.Debug("Started tracing span",
				zap.String("span_name", spanName),
				zap.String("trace_id", span.SpanContext().TraceID().String()))
		}

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int("http.response_size", c.Writer.Size()),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
		}
		if len(c.Errors) > 0 {
			span.SetAttributes(attribute.String("error.message", c.Errors.String()))
		}
	}
}
