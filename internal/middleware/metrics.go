package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/metrics"
)

// WithMetrics records request counts and latencies per route.
func WithMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

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

		path := c.Route().Path
		method := c.Method()
		duration := time.Since(start).Seconds()

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDurationSeconds.WithLabelValues(method, path).Observe(duration)

		logrus.WithFields(logrus.Fields{
			"method":           method,
			"path":             path,
			"status":           status,
			"duration_seconds": duration,
			"request_id":       c.Locals("requestid"),
		}).Debug("request metrics updated")

		return err
	}
}
