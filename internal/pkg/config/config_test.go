package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		Tracking: TrackingConfig{
			IntervalMS:       5000,
			MinDisplacementM: 10,
			Provider:         "memory",
			Device:           "default",
		},
		NATS: NATSConfig{URL: "nats://localhost:4222"},
		Log:  LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Tracking.Provider = "carrier-pigeon"
	cfg.Tracking.MinDisplacementM = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.port", "tracking.provider", "tracking.min_displacement_m"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_ProviderDependencies(t *testing.T) {
	cfg := validConfig()
	cfg.Tracking.Provider = "gpsd"
	cfg.GPSD.Addr = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "gpsd.addr") {
		t.Fatalf("expected gpsd.addr error, got %v", err)
	}

	cfg = validConfig()
	cfg.Temporal = TemporalConfig{Enabled: true}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "temporal.host_port") {
		t.Fatalf("expected temporal error, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NEIGHBORHELPER_TRACKING_PROVIDER", "nats")
	cfg, err := Load("api")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tracking.Interval() != 5*time.Second {
		t.Errorf("interval = %v, want 5s", cfg.Tracking.Interval())
	}
	if cfg.Tracking.MinDisplacementM != 10 {
		t.Errorf("min displacement = %v, want 10", cfg.Tracking.MinDisplacementM)
	}
	if cfg.Tracking.Provider != "nats" {
		t.Errorf("provider = %q, env override not applied", cfg.Tracking.Provider)
	}
	if cfg.Telemetry.ServiceName != "api" {
		t.Errorf("service name = %q", cfg.Telemetry.ServiceName)
	}
}

func TestValidate_Log(t *testing.T) {
	cfg := validConfig()
	cfg.Log = LogConfig{Level: "loud", Format: "xml"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"log.level", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
