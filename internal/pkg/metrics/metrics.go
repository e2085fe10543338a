package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neighborhelper",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "neighborhelper",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "neighborhelper",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Tracking metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "neighborhelper",
		Subsystem: "tracking",
		Name:      "active_sessions",
		Help:      "Current number of open tracking sessions",
	})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "neighborhelper",
		Subsystem: "tracking",
		Name:      "active_subscriptions",
		Help:      "Current number of live position subscriptions",
	})

	PositionFixes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neighborhelper",
		Subsystem: "tracking",
		Name:      "position_fixes_total",
		Help:      "Position fixes seen by subscriptions, by kind (seed, live, throttled)",
	}, []string{"kind"})

	DistanceComputations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "neighborhelper",
		Subsystem: "tracking",
		Name:      "distance_computations_total",
		Help:      "Total distance recomputations",
	})

	StaleDistances = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "neighborhelper",
		Subsystem: "tracking",
		Name:      "stale_distances_total",
		Help:      "Fixes rejected as invalid coordinates",
	})

	ProviderUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "neighborhelper",
		Subsystem: "tracking",
		Name:      "provider_unavailable_total",
		Help:      "Subscriptions that failed because the position provider was unavailable",
	})

	PermissionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neighborhelper",
		Subsystem: "tracking",
		Name:      "permission_results_total",
		Help:      "Permission outcomes (granted, denied, revoked)",
	}, []string{"result"})

	MatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neighborhelper",
		Subsystem: "feed",
		Name:      "matches_total",
		Help:      "Help-request matches by outcome",
	}, []string{"outcome"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "neighborhelper",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neighborhelper",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neighborhelper",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
