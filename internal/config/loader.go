package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "devplane.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "DEVPLANE_PORT")
	setString(&cfg.Server.CORSOrigin, "DEVPLANE_CORS_ORIGIN")
	setString(&cfg.Storage.Driver, "DEVPLANE_STORAGE_DRIVER")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "DEVPLANE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "DEVPLANE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "DEVPLANE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "DEVPLANE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "DEVPLANE_PG_HEALTH_CHECK")
	setBool(&cfg.NATS.Enabled, "DEVPLANE_NATS_ENABLED")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Logging.Level, "DEVPLANE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DEVPLANE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "DEVPLANE_LOG_ASYNC")
	setFloat64(&cfg.Rate.RequestsPerSecond, "DEVPLANE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "DEVPLANE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "DEVPLANE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "DEVPLANE_RATE_MAX_IDLE_TIME")
	setInt64(&cfg.Runs.MaxConcurrent, "DEVPLANE_RUNS_MAX_CONCURRENT")
	setDuration(&cfg.Runs.StepDelay, "DEVPLANE_RUNS_STEP_DELAY")
	setDuration(&cfg.Stream.KeepAlive, "DEVPLANE_STREAM_KEEPALIVE")
	setInt64(&cfg.Cache.MaxSizeMB, "DEVPLANE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "DEVPLANE_CACHE_TTL")
	setString(&cfg.Workspace.Root, "DEVPLANE_WORKSPACE_ROOT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Storage.Driver {
	case "memory":
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required with the postgres driver")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("storage.driver must be memory or postgres, got %q", cfg.Storage.Driver)
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if cfg.Runs.MaxConcurrent < 1 {
		return errors.New("runs.max_concurrent must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Workspace.Root == "" {
		return errors.New("workspace.root is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
