package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// ContextKeyRequestID is the Gin context key for the request ID.
	ContextKeyRequestID = "request_id"
	// ContextKeyLogger is the Gin context key for the request-scoped logger.
	ContextKeyLogger = "request_logger"
)

// RequestIDMiddleware assigns a request ID and a logger tagged with it.
func RequestIDMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Set(ContextKeyLogger, log.With().Str("request_id", reqID).Logger())
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

// Logger returns the request-scoped logger, or a disabled one outside a request.
func Logger(c *gin.Context) zerolog.Logger {
	if v, ok := c.Get(ContextKeyLogger); ok {
		if l, ok := v.(zerolog.Logger); ok {
			return l
		}
	}
	return zerolog.Nop()
}
