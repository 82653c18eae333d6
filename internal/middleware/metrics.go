package middleware

import (
	"strconv"
	"time"

	"github.com/fairtest/fairtest-backend/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request latency by route template, never by raw path, so
// pseudonym hashes in URLs do not become label values.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
