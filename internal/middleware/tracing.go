package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nathanyu/account-ledger/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing middleware adds OpenTelemetry tracing to requests
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		if telemetry.Tracer == nil {
			c.Next()
			return
		}

		route := routeOf(c)

		ctx, span := telemetry.Tracer.Start(c.Request.Context(), "HTTP "+c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", c.Request.URL.Path),
				attribute.String("http.host", c.Request.Host),
				attribute.String("http.user_agent", c.Request.UserAgent()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		statusCode := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.Float64("http.duration_ms", float64(duration.Microseconds())/1000),
		)

		// 4xx are client mistakes; only server errors mark the span failed.
		if statusCode >= 500 {
			span.SetStatus(codes.Error, "HTTP error")
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}
