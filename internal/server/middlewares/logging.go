package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vzahanych/weather-alert-bot/internal/server/utils"
	"go.uber.org/zap"
)

// LoggingMiddleware logs one line per request. Probe and scrape paths in
// quiet are logged at debug level.
func LoggingMiddleware(logger *zap.Logger, quiet ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}

		if requestID := utils.GetRequestIDFromGinContext(c); requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}
		if userAgent := c.Request.UserAgent(); userAgent != "" {
			fields = append(fields, zap.String("user_agent", userAgent))
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, zap.String("error", msg))
		}

		switch {
		case status >= 500:
			logger.Error("HTTP request", fields...)
		case status >= 400:
			logger.Warn("HTTP request", fields...)
		case skip[c.FullPath()]:
			logger.Debug("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

func RecoveryMiddleware(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Any("recovered", recovered),
		}

		if requestID := utils.GetRequestIDFromGinContext(c); requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}

		if stack {
			fields = append(fields, zap.Stack("stack"))
		}

		logger.Error("HTTP panic recovered", fields...)
		c.AbortWithStatus(500)
	})
}
