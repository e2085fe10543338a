package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/neighborhelper/internal/adapters/nats"
	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/pkg/config"
	"github.com/samirrijal/neighborhelper/internal/pkg/geospatial"
	"github.com/samirrijal/neighborhelper/internal/pkg/logging"
)

// Route walked by the simulated helper: Mirpur DOHS to Sutrapur.
var (
	walkFrom = domain.GeoPoint{Lat: 23.8380, Lon: 90.3753}
	walkTo   = domain.GeoPoint{Lat: 23.7104, Lon: 90.4074}
)

const walkSteps = 120

// Publishes a device walking towards a requester on location.fix.<device>.
// Usage: simulator [json|protobuf]
func main() {
	cfg, err := config.Load("neighborhelper-simulator")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	contentType := natsadapter.ContentTypeJSON
	if len(os.Args) > 1 && os.Args[1] == "protobuf" {
		contentType = natsadapter.ContentTypeProtobuf
	}

	nc, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer nc.Drain()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	interval := cfg.Tracking.Interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("simulator started",
		"device", cfg.Tracking.Device, "interval", interval, "content_type", contentType)

	for step := 0; ; step = (step + 1) % (walkSteps + 1) {
		fix := natsadapter.Fix{
			Device: cfg.Tracking.Device,
			Point:  walkPoint(step),
			At:     time.Now().UTC(),
		}
		msg, err := natsadapter.EncodeFix(fix, contentType)
		if err != nil {
			log.Fatalf("encode: %v", err)
		}
		if err := nc.PublishMsg(msg); err != nil {
			slog.Warn("publish fix failed", "error", err)
		} else {
			slog.Debug("fix published", "lat", fix.Point.Lat, "lon", fix.Point.Lon, "step", step)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			slog.Info("simulator stopped")
			return
		}
	}
}

// walkPoint is the position after step of walkSteps.
func walkPoint(step int) domain.GeoPoint {
	lat, lon := geospatial.Interpolate(walkFrom.Lat, walkFrom.Lon, walkTo.Lat, walkTo.Lon, float64(step)/walkSteps)
	return domain.GeoPoint{Lat: lat, Lon: lon}
}
