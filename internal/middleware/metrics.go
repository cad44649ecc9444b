package middleware

import (
	"strconv"
	"time"

	"app/internal/metrics"

	"github.com/labstack/echo/v4"
)

// HTTPMetricsはリクエスト数とレイテンシをPrometheusに記録する。
// pathラベルはルートパターン（/posts/:id）を使う。カーディナリティ対策。
func HTTPMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unknown"
			}
			method := c.Request().Method
			status := c.Response().Status

			metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
