// Package config loads the campuscore runtime configuration: defaults, an
// optional YAML file, then CAMPUSCORE_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"campuscore/internal/core"
	"campuscore/internal/infra/blob/s3"
)

// Report artifact backends.
const (
	ReportsMemory = "memory"
	ReportsS3     = "s3"
)

// Config is the full runtime configuration.
type Config struct {
	HTTP      HTTPConfig         `yaml:"http"`
	Log       LogConfig          `yaml:"log"`
	Storage   core.StorageConfig `yaml:"storage"`
	Reports   ReportsConfig      `yaml:"reports"`
	Gemini    GeminiConfig       `yaml:"gemini"`
	Telemetry TelemetryConfig    `yaml:"telemetry"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ReportsConfig configures the export worker and where artifacts go.
type ReportsConfig struct {
	Backend   string        `yaml:"backend"`
	QueueSize int           `yaml:"queue_size"`
	URLExpiry time.Duration `yaml:"url_expiry"`
	S3        s3.Config     `yaml:"s3"`
}

// GeminiConfig configures the optional draft generator. A blank APIKey
// disables it.
type GeminiConfig struct {
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TelemetryConfig names the service in exported traces.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTP:    HTTPConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:     LogConfig{Level: "info"},
		Storage: core.StorageConfig{Driver: core.StorageSQLite, SQLitePath: "campuscore.db"},
		Reports: ReportsConfig{Backend: ReportsMemory, QueueSize: 32, URLExpiry: time.Hour},
		Gemini:  GeminiConfig{Timeout: 30 * time.Second},
		Telemetry: TelemetryConfig{
			ServiceName: "campuscore",
		},
	}
}

// Load reads path when non-empty, applies environment overrides and
// validates the result. A missing file is an error only when path was given.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer func() { _ = f.Close() }()
		if err := decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTP.Addr, "CAMPUSCORE_HTTP_ADDR")
	setString(&cfg.Log.Level, "CAMPUSCORE_LOG_LEVEL")

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("CAMPUSCORE_STORAGE_DRIVER"))); v != "" {
		cfg.Storage.Driver = core.StorageDriver(v)
	}
	setString(&cfg.Storage.SQLitePath, "CAMPUSCORE_SQLITE_PATH")
	setString(&cfg.Storage.PostgresDSN, "CAMPUSCORE_POSTGRES_DSN")

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("CAMPUSCORE_REPORTS_BACKEND"))); v != "" {
		cfg.Reports.Backend = v
	}
	cfg.Reports.QueueSize = readInt("CAMPUSCORE_REPORTS_QUEUE_SIZE", cfg.Reports.QueueSize)
	setString(&cfg.Reports.S3.Bucket, "CAMPUSCORE_REPORTS_S3_BUCKET")
	setString(&cfg.Reports.S3.Region, "CAMPUSCORE_REPORTS_S3_REGION")
	setString(&cfg.Reports.S3.Endpoint, "CAMPUSCORE_REPORTS_S3_ENDPOINT")
	setString(&cfg.Reports.S3.Prefix, "CAMPUSCORE_REPORTS_S3_PREFIX")
	if v := os.Getenv("CAMPUSCORE_REPORTS_S3_PATH_STYLE"); v != "" {
		cfg.Reports.S3.PathStyle = strings.EqualFold(v, "true")
	}

	setString(&cfg.Gemini.APIKey, "CAMPUSCORE_GEMINI_API_KEY")
	setString(&cfg.Gemini.Model, "CAMPUSCORE_GEMINI_MODEL")
	setString(&cfg.Gemini.Endpoint, "CAMPUSCORE_GEMINI_ENDPOINT")

	setString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// Validate rejects settings the process cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			errs = append(errs, errors.New("storage.postgres_dsn required for postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Reports.Backend {
	case ReportsMemory:
	case ReportsS3:
		if strings.TrimSpace(c.Reports.S3.Bucket) == "" {
			errs = append(errs, errors.New("reports.s3.bucket required for s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown reports backend %q", c.Reports.Backend))
	}
	if c.Reports.QueueSize < 0 {
		errs = append(errs, errors.New("reports.queue_size must not be negative"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel returns the configured log level, info when unparsable.
func (c Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(raw) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
