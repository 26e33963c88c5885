package utils

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

const (
	SpanContextKey = "span_context"
	RequestIDKey   = "request_id"
)

// GetSpanFromGinContext returns the request span set by the tracing
// middleware, or the span of the request context.
func GetSpanFromGinContext(c *gin.Context) trace.Span {
	return trace.SpanFromContext(GetContextFromGinContext(c))
}

// GetContextFromGinContext returns the traced context when present.
func GetContextFromGinContext(c *gin.Context) context.Context {
	if spanCtx, exists := c.Get(SpanContextKey); exists {
		if ctx, ok := spanCtx.(context.Context); ok {
			return ctx
		}
	}
	return c.Request.Context()
}

func GetRequestIDFromGinContext(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
