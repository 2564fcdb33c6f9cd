package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/roadclosures/capture/internal/adapters/closures"
	"github.com/roadclosures/capture/internal/adapters/http"
	natsadapter "github.com/roadclosures/capture/internal/adapters/nats"
	"github.com/roadclosures/capture/internal/adapters/postgres"
	"github.com/roadclosures/capture/internal/adapters/routing"
	"github.com/roadclosures/capture/internal/adapters/valkey"
	"github.com/roadclosures/capture/internal/core/domain"
	"github.com/roadclosures/capture/internal/core/ports"
	"github.com/roadclosures/capture/internal/core/usecases"
	"github.com/roadclosures/capture/internal/events"
	"github.com/roadclosures/capture/internal/pkg/config"
	"github.com/roadclosures/capture/internal/pkg/logging"
	"github.com/roadclosures/capture/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("capture-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database (submission journal)
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, route caching disabled", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// In-process event bus: the selection coordinator broadcasts here
	// and the map, websocket relay, and NATS mirror all listen.
	bus := events.New()

	// NATS: mirror local events out, bridge remote ones in.
	mirror, err := natsadapter.NewMirror(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events stay local", "error", err)
	} else {
		mirror.Attach(bus)
		defer mirror.Close()
	}
	if bridge, err := natsadapter.NewBridge(cfg.NATS.URL); err != nil {
		slog.Warn("nats bridge unavailable", "error", err)
	} else if err := bridge.Run(bus); err != nil {
		slog.Warn("nats bridge subscribe failed", "error", err)
	} else {
		defer bridge.Close()
	}

	// Raw NATS connection for readiness checks
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats conn unavailable", "error", err)
	}

	// Route resolver, with read-through caching when Valkey is up
	var resolver ports.RouteResolver = routing.NewOSRMResolver(
		cfg.Routing.URL,
		time.Duration(cfg.Routing.TimeoutSeconds)*time.Second,
	)
	if cache != nil && cfg.Routing.CacheTTLSeconds > 0 {
		resolver = routing.NewCachedResolver(resolver, cache, cfg.Routing.CacheTTLSeconds)
	}

	// Closure backend: mock or live is an explicit deployment choice
	var backend ports.ClosureBackend
	if cfg.Backend.Mock {
		slog.Warn("using in-memory mock closure backend")
		backend = closures.NewMockBackend()
	} else {
		backend = closures.NewClient(
			cfg.Backend.BaseURL,
			cfg.Backend.Token,
			time.Duration(cfg.Backend.TimeoutSeconds)*time.Second,
		)
	}

	// Downstream consumers get the full closure record, not just the
	// submission event. Fetched off the bus so submit never blocks on it.
	if mirror != nil {
		bus.Subscribe(domain.TopicClosureSubmitted, func(_ string, payload any) {
			ev, ok := payload.(domain.ClosureSubmittedEvent)
			if !ok {
				return
			}
			go func() {
				fetchCtx, fetchCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer fetchCancel()
				closure, err := backend.Get(fetchCtx, ev.ClosureID)
				if err != nil {
					slog.Warn("fetch submitted closure for mirror", "closure_id", ev.ClosureID, "error", err)
					return
				}
				if err := mirror.PublishSubmission(closure); err != nil {
					slog.Warn("mirror submitted closure", "closure_id", ev.ClosureID, "error", err)
				}
			}()
		})
	}

	// Use cases
	journal := postgres.NewJournalRepo(db)
	selection := usecases.NewSelectionService(resolver, bus, domain.TransportProfile(cfg.Routing.Profile))
	submission := usecases.NewSubmissionService(selection, backend, journal, bus)

	deps := &http.Dependencies{
		Selection:  selection,
		Submission: submission,
		Backend:    backend,
		Bus:        bus,
		NATS:       natsConn,
		DB:         db,
		Cache:      cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Road Closure Capture API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
