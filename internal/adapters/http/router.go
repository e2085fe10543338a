package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/neighborhelper/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 300 requests per minute per IP; the screen polls state
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware("/metrics", "/v1/tracking/", "/ws"))

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	// Feed
	v1.Get("/posts", timeout.NewWithContext(ListPostsHandler(deps), requestTimeout))
	v1.Get("/posts/:id", timeout.NewWithContext(GetPostHandler(deps), requestTimeout))
	v1.Post("/posts/:id/accept", PostActionHandler(deps, "accept"))
	v1.Post("/posts/:id/like", PostActionHandler(deps, "like"))
	v1.Post("/posts/:id/comment", PostActionHandler(deps, "comment"))
	v1.Post("/posts/:id/match", timeout.NewWithContext(MatchPostHandler(deps), requestTimeout))

	// Tracking sessions
	v1.Post("/tracking/sessions", CreateSessionHandler(deps))
	v1.Get("/tracking/sessions", ListSessionsHandler(deps))
	v1.Get("/tracking/sessions/:id", GetSessionHandler(deps))
	v1.Get("/tracking/sessions/:id/markers", SessionMarkersHandler(deps))
	v1.Post("/tracking/sessions/:id/permission", RequestPermissionHandler(deps))
	v1.Post("/tracking/sessions/:id/permission/decision", DecidePermissionHandler(deps))
	v1.Post("/tracking/sessions/:id/permission/revoke", RevokePermissionHandler(deps))
	v1.Delete("/tracking/sessions/:id", DeleteSessionHandler(deps))

	if deps.Device != nil {
		v1.Post("/device/fix", DeviceFixHandler(deps))
	}

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/tracking/:id", websocket.New(TrackingSocketHandler(deps)))
	if deps.NATS != nil {
		app.Get("/ws/events", websocket.New(EventsSocketHandler(deps.NATS)))
	}
}
