package middleware

import (
	"strconv"
	"time"

	"cookbook/internal/infra/metrics"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware records request counts and latencies per route.
type MetricsMiddleware struct {
	metrics *metrics.HTTPMetrics
}

// NewMetricsMiddleware creates a new metrics middleware
func NewMetricsMiddleware(m *metrics.HTTPMetrics) *MetricsMiddleware {
	return &MetricsMiddleware{metrics: m}
}

// Handle observes the request after the error handler has set the status.
func (m *MetricsMiddleware) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		// Route templates keep label cardinality bounded.
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request().Method

		m.metrics.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
		m.metrics.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		return nil
	}
}
