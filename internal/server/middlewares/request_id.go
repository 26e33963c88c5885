package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vzahanych/weather-alert-bot/internal/server/utils"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = utils.RequestIDKey

	maxRequestIDLength = 64
)

// RequestIDMiddleware propagates the caller's X-Request-ID, or assigns a new
// one when it is missing or too long.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.New().String()
		}

		c.Header(RequestIDHeader, requestID)
		c.Set(RequestIDKey, requestID)

		c.Next()
	}
}
