package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"safeclicker/metrics"
)

// Metrics records request counts and latency per route pattern, so
// /campaigns/7 and /campaigns/8 share one series.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		method := c.Method()
		metrics.HttpRequestsTotal.WithLabelValues(route, strconv.Itoa(status), method).Inc()
		metrics.HttpRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		return err
	}
}
