package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nathanyu/account-ledger/internal/telemetry"
)

// Metrics middleware collects Prometheus metrics for requests
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := routeOf(c)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			route,
			status,
		).Inc()

		telemetry.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			route,
		).Observe(duration.Seconds())
	}
}
