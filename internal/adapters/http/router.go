package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/roadclosures/capture/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 240 requests per minute per IP. Map clicks arrive
	// in bursts, so this is looser than a typical read API.
	app.Use(limiter.New(limiter.Config{
		Max:        240,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness, no timeout: fast internal checks
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1 with a 15s per-request timeout. Submit gets 30s: it waits
	// on the closure backend.
	v1 := app.Group("/v1")
	v1.Post("/session", timeout.NewWithContext(OpenSessionHandler(deps), 15*time.Second))
	v1.Get("/session", timeout.NewWithContext(GetSessionHandler(deps), 15*time.Second))
	v1.Delete("/session", timeout.NewWithContext(CloseSessionHandler(deps), 15*time.Second))
	v1.Put("/session/mode", timeout.NewWithContext(SetModeHandler(deps), 15*time.Second))
	v1.Post("/session/points", timeout.NewWithContext(AddPointHandler(deps), 15*time.Second))
	v1.Delete("/session/points", timeout.NewWithContext(ClearPointsHandler(deps), 15*time.Second))
	v1.Post("/session/finish", timeout.NewWithContext(FinishSelectionHandler(deps), 15*time.Second))
	v1.Post("/session/resume", timeout.NewWithContext(ResumeSelectionHandler(deps), 15*time.Second))
	v1.Get("/session/effective", timeout.NewWithContext(EffectiveGeometryHandler(deps), 15*time.Second))
	v1.Post("/session/submit", timeout.NewWithContext(SubmitHandler(deps), 30*time.Second))
	v1.Get("/submissions", timeout.NewWithContext(ListSubmissionsHandler(deps), 15*time.Second))
	v1.Get("/closures/:id", timeout.NewWithContext(GetClosureHandler(deps), 15*time.Second))

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
	app.Get("/ws", websocket.New(WebSocketHandler(deps.Bus)))
}
