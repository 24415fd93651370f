package middleware

import (
	"strconv"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_redis_errors_total",
		Help: "Total number of Redis command errors",
	}, []string{"command"})

	// ActiveWebSockets is the number of open live-view websocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campushub_active_websockets",
		Help: "Number of open websocket connections",
	})

	// RateLimitRejections counts requests rejected by the Redis route limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_route_rate_limit_rejections_total",
		Help: "Requests rejected by route rate limits",
	}, []string{"resource"})

	httpErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_http_errors_total",
		Help: "HTTP responses with status >= 400 by route and status",
	}, []string{"route", "status"})
)

// InitMetrics builds the Fiber Prometheus middleware for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware records request metrics plus an error counter keyed by route template.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	base := prom.Middleware
	return func(c *fiber.Ctx) error {
		err := base(c)
		if status := c.Response().StatusCode(); status >= fiber.StatusBadRequest {
			route := c.Path()
			if r := c.Route(); r != nil && r.Path != "" {
				route = r.Path
			}
			httpErrors.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
		return err
	}
}
