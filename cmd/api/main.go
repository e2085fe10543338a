package main

import (
	"context"
	"errors"
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
	"go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/neighborhelper/internal/adapters/gpsd"
	"github.com/samirrijal/neighborhelper/internal/adapters/http"
	"github.com/samirrijal/neighborhelper/internal/adapters/mapview"
	"github.com/samirrijal/neighborhelper/internal/adapters/memory"
	natsadapter "github.com/samirrijal/neighborhelper/internal/adapters/nats"
	"github.com/samirrijal/neighborhelper/internal/adapters/valkey"
	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
	"github.com/samirrijal/neighborhelper/internal/core/usecases"
	"github.com/samirrijal/neighborhelper/internal/pkg/config"
	"github.com/samirrijal/neighborhelper/internal/pkg/logging"
	"github.com/samirrijal/neighborhelper/internal/pkg/telemetry"
	"github.com/samirrijal/neighborhelper/internal/workflows"
)

func main() {
	cfg, err := config.Load("neighborhelper-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
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

	// Cache
	var cache ports.CacheService
	var pinger http.Pinger
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache, pinger = vc, vc
	}

	// NATS
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	// Position provider
	var (
		provider ports.PositionProvider
		device   http.FixSink
	)
	switch cfg.Tracking.Provider {
	case "gpsd":
		provider = gpsd.NewProvider(cfg.GPSD.Addr)
	case "nats":
		if pub == nil {
			log.Fatalf("tracking.provider=nats requires a NATS connection")
		}
		provider = natsadapter.NewPositionSource(pub.Conn(), cfg.Tracking.Device)
	default:
		mem := memory.NewPositionProvider()
		provider, device = mem, mem
	}
	if cache != nil {
		provider = usecases.NewCachingProvider(provider, cache, cfg.Tracking.Device, cfg.Tracking.LastKnownTTLS)
	}
	slog.Info("position provider ready", "provider", cfg.Tracking.Provider, "device", cfg.Tracking.Device)

	// Use cases
	feedSvc := usecases.NewFeedService(memory.NewSeededPostRepo(), cache)
	sessionSvc := usecases.NewSessionService(provider, publisher, mapview.NewSurface, usecases.SessionOptions{
		Policy: domain.DeliveryPolicy{
			Interval:              cfg.Tracking.Interval(),
			MinDisplacementMeters: cfg.Tracking.MinDisplacementM,
		},
		AutoGrant: cfg.Tracking.AutoGrant,
		Strict:    cfg.Tracking.Strict,
	})
	defer sessionSvc.CloseAll()
	matchSvc := usecases.NewMatchService(feedSvc, sessionSvc, publisher)

	g, gctx := errgroup.WithContext(ctx)

	// Matching runs through Temporal when enabled
	var matcher http.Matcher = matchSvc
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			log.Fatalf("temporal client: %v", err)
		}
		defer tc.Close()

		w := workflows.NewWorker(tc, cfg.Temporal.TaskQueue, &workflows.MatchActivities{
			Matches:   matchSvc,
			Feed:      feedSvc,
			Sessions:  sessionSvc,
			Publisher: publisher,
		})
		if err := w.Start(); err != nil {
			log.Fatalf("temporal worker: %v", err)
		}
		defer w.Stop()
		matcher = workflows.NewTemporalMatcher(tc, cfg.Temporal.TaskQueue)
		slog.Info("match worker started", "task_queue", cfg.Temporal.TaskQueue)
	}

	deps := &http.Dependencies{
		Feed:     feedSvc,
		Sessions: sessionSvc,
		Matches:  matcher,
		Device:   device,
		Cache:    pinger,
	}
	if pub != nil {
		deps.NATS = pub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // requests are small JSON documents
		AppName:      "Neighborhelper API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, http://localhost:8081",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		// Give in-flight requests up to 10s to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
