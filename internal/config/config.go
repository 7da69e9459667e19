// Package config provides configuration loading and validation for the
// fundscope services. It uses koanf to merge environment variables with
// optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fundscope/fundscope/internal/ingest"
	"github.com/fundscope/fundscope/internal/validate"
)

// Config holds all configuration values for the API server and the
// ingestion worker.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty enables the in-memory stores (development only).
	DatabaseURL string `koanf:"database_url"`

	// Redis. Empty disables the snapshot cache and the refresh lock.
	RedisURL string `koanf:"redis_url"`

	// CalibrationPath points at the JSON scoring weights file.
	// Empty uses the built-in defaults.
	CalibrationPath string `koanf:"calibration_path"`

	// MetricsToken guards the /metrics endpoint. Empty = unauthenticated.
	MetricsToken string `koanf:"metrics_token"`

	// Ingestion settings.
	RetentionDays      int `koanf:"retention_days"`
	RefreshIntervalMin int `koanf:"refresh_interval_min"`
	FetchTimeoutSec    int `koanf:"fetch_timeout_sec"`
	UpsertWorkers      int `koanf:"upsert_workers"`
	SnapshotTTLSec     int `koanf:"snapshot_ttl_sec"`

	// AllowedOrigins is the CORS allowlist for the dashboard frontend.
	// Empty disables CORS handling entirely.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// Sources is the producer registry, file-configured only.
	Sources []ingest.Source `koanf:"sources"`

	// Tracing settings.
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// Configuration validation errors.
var (
	ErrInvalidPort           = errors.New("PORT must be a valid integer")
	ErrInvalidRetention      = errors.New("RETENTION_DAYS must be positive")
	ErrInvalidRefreshPeriod  = errors.New("REFRESH_INTERVAL_MIN must be positive")
	ErrInvalidUpsertWorkers  = errors.New("UPSERT_WORKERS must be positive")
	ErrSourceMissingName     = errors.New("every source needs a name")
	ErrSourceMissingURL      = errors.New("every source needs a url")
	ErrSourceUnknownKind     = errors.New("source kind must be rss or listing")
	ErrFeedSourceNeedsSector = errors.New("rss sources need a sector")
	ErrInvalidSampleRate     = errors.New("TRACING_SAMPLE_RATE must be a float between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort               = 8080
	DefaultEnv                = "development"
	DefaultRetentionDays      = 30
	DefaultRefreshIntervalMin = 60
	DefaultFetchTimeoutSec    = 30
	DefaultUpsertWorkers      = 4
	DefaultSnapshotTTLSec     = 300
	DefaultTracingSampleRate  = 0.1
)

// Load reads configuration from environment variables and an optional YAML
// config file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if
// valid). A config file path that cannot be loaded is an error.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, err := getEnvIntOrDefault("FUNDSCOPE_PORT", k.Int("port"), DefaultPort, ErrInvalidPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	retention, err := getEnvIntOrDefault("FUNDSCOPE_RETENTION_DAYS", k.Int("retention_days"), DefaultRetentionDays, ErrInvalidRetention)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	refresh, err := getEnvIntOrDefault("FUNDSCOPE_REFRESH_INTERVAL_MIN", k.Int("refresh_interval_min"), DefaultRefreshIntervalMin, ErrInvalidRefreshPeriod)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	fetchTimeout, err := getEnvIntOrDefault("FUNDSCOPE_FETCH_TIMEOUT_SEC", k.Int("fetch_timeout_sec"), DefaultFetchTimeoutSec, ErrInvalidPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	workers, err := getEnvIntOrDefault("FUNDSCOPE_UPSERT_WORKERS", k.Int("upsert_workers"), DefaultUpsertWorkers, ErrInvalidUpsertWorkers)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	snapshotTTL, err := getEnvIntOrDefault("FUNDSCOPE_SNAPSHOT_TTL_SEC", k.Int("snapshot_ttl_sec"), DefaultSnapshotTTLSec, ErrInvalidPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	var sources []ingest.Source
	if err := k.Unmarshal("sources", &sources); err != nil {
		loadErrs = append(loadErrs, fmt.Errorf("failed to parse sources: %w", err))
	}

	tracingEnabled := k.Bool("tracing_enabled")
	if raw := os.Getenv("FUNDSCOPE_TRACING_ENABLED"); raw != "" {
		tracingEnabled = raw == "true" || raw == "1"
	}
	sampleRate := k.Float64("tracing_sample_rate")
	if raw := os.Getenv("FUNDSCOPE_TRACING_SAMPLE_RATE"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("FUNDSCOPE_TRACING_SAMPLE_RATE: %w", ErrInvalidSampleRate))
		} else {
			sampleRate = f
		}
	}
	if sampleRate == 0 {
		sampleRate = DefaultTracingSampleRate
	}

	origins := k.Strings("allowed_origins")
	if raw := os.Getenv("FUNDSCOPE_ALLOWED_ORIGINS"); raw != "" {
		origins = nil
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	cfg := &Config{
		Port:               port,
		Env:                getEnvOrDefault("FUNDSCOPE_ENV", k.String("env"), DefaultEnv),
		DatabaseURL:        getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:           getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		CalibrationPath:    getEnvOrKoanf("FUNDSCOPE_CALIBRATION_PATH", k, "calibration_path"),
		MetricsToken:       getEnvOrKoanf("FUNDSCOPE_METRICS_TOKEN", k, "metrics_token"),
		RetentionDays:      retention,
		RefreshIntervalMin: refresh,
		FetchTimeoutSec:    fetchTimeout,
		UpsertWorkers:      workers,
		SnapshotTTLSec:     snapshotTTL,
		AllowedOrigins:     origins,
		Sources:            sources,
		TracingEnabled:     tracingEnabled,
		TracingExporter:    getEnvOrDefault("FUNDSCOPE_TRACING_EXPORTER", k.String("tracing_exporter"), "otlp-http"),
		OTLPEndpoint:       getEnvOrKoanf("FUNDSCOPE_OTLP_ENDPOINT", k, "otlp_endpoint"),
		TracingSampleRate:  sampleRate,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// Validate checks configuration invariants.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.RetentionDays <= 0 {
		errs = append(errs, ErrInvalidRetention)
	}
	if c.RefreshIntervalMin <= 0 {
		errs = append(errs, ErrInvalidRefreshPeriod)
	}
	if c.UpsertWorkers <= 0 {
		errs = append(errs, ErrInvalidUpsertWorkers)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	for _, s := range c.Sources {
		if s.Name == "" {
			errs = append(errs, ErrSourceMissingName)
			continue
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("source %s: %w", s.Name, ErrSourceMissingURL))
		} else if _, err := validate.SourceURL(s.URL); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", s.Name, err))
		}
		switch s.Kind {
		case "rss":
			if s.Sector == "" {
				errs = append(errs, fmt.Errorf("source %s: %w", s.Name, ErrFeedSourceNeedsSector))
			}
		case "listing":
		default:
			errs = append(errs, fmt.Errorf("source %s: %w", s.Name, ErrSourceUnknownKind))
		}
	}
	return errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise
// the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise
// the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set,
// otherwise the koanf value, or default. Returns parseErr wrapped when the
// environment variable is set but not an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int, parseErr error) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", envKey, parseErr)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}
