package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/neighborhelper/internal/pkg/logging"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	GPSD      GPSDConfig      `mapstructure:"gpsd"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// TrackingConfig configures live-location sessions.
type TrackingConfig struct {
	IntervalMS       int     `mapstructure:"interval_ms"`
	MinDisplacementM float64 `mapstructure:"min_displacement_m"`
	AutoGrant        bool    `mapstructure:"auto_grant"`
	Strict           bool    `mapstructure:"strict"`
	// Provider is one of "memory", "gpsd" or "nats".
	Provider      string `mapstructure:"provider"`
	Device        string `mapstructure:"device"`
	LastKnownTTLS int    `mapstructure:"last_known_ttl_s"`
}

// Interval returns the delivery interval hint.
func (t TrackingConfig) Interval() time.Duration {
	return time.Duration(t.IntervalMS) * time.Millisecond
}

type GPSDConfig struct {
	Addr string `mapstructure:"addr"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("tracking.interval_ms", 5000)
	v.SetDefault("tracking.min_displacement_m", 10.0)
	v.SetDefault("tracking.auto_grant", false)
	v.SetDefault("tracking.strict", false)
	v.SetDefault("tracking.provider", "memory")
	v.SetDefault("tracking.device", "default")
	v.SetDefault("tracking.last_known_ttl_s", 600)
	v.SetDefault("gpsd.addr", "localhost:2947")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "neighborhelper-match")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: NEIGHBORHELPER_TRACKING_PROVIDER → tracking.provider
	v.SetEnvPrefix("NEIGHBORHELPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Tracking.IntervalMS < 0 {
		errs = append(errs, fmt.Sprintf("tracking.interval_ms must not be negative, got %d", c.Tracking.IntervalMS))
	}
	if c.Tracking.MinDisplacementM < 0 {
		errs = append(errs, fmt.Sprintf("tracking.min_displacement_m must not be negative, got %g", c.Tracking.MinDisplacementM))
	}
	if c.Tracking.Device == "" {
		errs = append(errs, "tracking.device is required")
	}
	switch c.Tracking.Provider {
	case "memory":
	case "gpsd":
		if c.GPSD.Addr == "" {
			errs = append(errs, "gpsd.addr is required when tracking.provider is gpsd")
		}
	case "nats":
		if c.NATS.URL == "" {
			errs = append(errs, "nats.url is required when tracking.provider is nats")
		}
	default:
		errs = append(errs, fmt.Sprintf("tracking.provider must be memory, gpsd or nats, got %q", c.Tracking.Provider))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, "log.level: "+err.Error())
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Temporal.Enabled {
		if c.Temporal.HostPort == "" {
			errs = append(errs, "temporal.host_port is required when temporal is enabled")
		}
		if c.Temporal.TaskQueue == "" {
			errs = append(errs, "temporal.task_queue is required when temporal is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
