// Package config loads the roster service configuration.
//
// Values are layered: built-in defaults, then an optional YAML file named by
// SCHEDULER_CONFIG_FILE, then SCHEDULER_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Tokyo must resolve on hosts without zoneinfo.

	"github.com/caarlos0/env/v11"
	yaml "go.yaml.in/yaml/v3"

	"github.com/example/site-roster/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SCHEDULER_"

// ConfigFileEnv names the optional YAML configuration file.
const ConfigFileEnv = EnvPrefix + "CONFIG_FILE"

// Config captures the configuration values of the roster service.
type Config struct {
	HTTPPort   int    `yaml:"http_port" env:"HTTP_PORT"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	// Timezone is the IANA zone calendar days are evaluated in.
	Timezone          string        `yaml:"timezone" env:"TIMEZONE"`
	StorageTimeout    time.Duration `yaml:"storage_timeout" env:"STORAGE_TIMEOUT"`
	RecurrenceWorkers int           `yaml:"recurrence_workers" env:"RECURRENCE_WORKERS"`
	WorkerListLimit   int           `yaml:"worker_list_limit" env:"WORKER_LIST_LIMIT"`
	// AdminTokenHash is an argon2id encoded hash. Empty leaves ledger writes open.
	AdminTokenHash     string        `yaml:"admin_token_hash" env:"ADMIN_TOKEN_HASH"`
	RateLimitRPS       float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	HistoryMaxSessions int           `yaml:"history_max_sessions" env:"HISTORY_MAX_SESSIONS"`
	HistorySessionTTL  time.Duration `yaml:"history_session_ttl" env:"HISTORY_SESSION_TTL"`
	// OTelEndpoint is an OTLP/HTTP traces URL. Empty disables tracing.
	OTelEndpoint string `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`
	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat    string `yaml:"log_format" env:"LOG_FORMAT"`

	// Location is resolved from Timezone by Load.
	Location *time.Location `yaml:"-"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		HTTPPort:           8080,
		SQLitePath:         "scheduler.db",
		Timezone:           "Asia/Tokyo",
		StorageTimeout:     5 * time.Second,
		RecurrenceWorkers:  4,
		WorkerListLimit:    200,
		RateLimitRPS:       20,
		RateLimitBurst:     40,
		HistoryMaxSessions: 256,
		HistorySessionTTL:  12 * time.Hour,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load builds the configuration from defaults, the optional YAML file and the
// process environment, reporting localized errors that name the offending
// variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("設定ファイルを読み込めません: %s: %w", path, err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("設定ファイルの形式が不正です: %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %w", err)
	}

	invalid := cfg.validate()
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %sTIMEZONE", EnvPrefix)
	}
	cfg.Location = loc
	return cfg, nil
}

// decodeYAML overlays data onto cfg; unknown keys are rejected.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c Config) validate() []string {
	var invalid []string
	check := func(ok bool, name string) {
		if !ok {
			invalid = append(invalid, EnvPrefix+name)
		}
	}

	check(c.HTTPPort > 0 && c.HTTPPort <= 65535, "HTTP_PORT")
	check(strings.TrimSpace(c.SQLitePath) != "", "SQLITE_PATH")
	check(strings.TrimSpace(c.Timezone) != "", "TIMEZONE")
	check(c.StorageTimeout > 0, "STORAGE_TIMEOUT")
	check(c.RecurrenceWorkers > 0, "RECURRENCE_WORKERS")
	check(c.WorkerListLimit > 0, "WORKER_LIST_LIMIT")
	check(c.AdminTokenHash == "" || strings.HasPrefix(c.AdminTokenHash, "$argon2id$"), "ADMIN_TOKEN_HASH")
	check(c.RateLimitRPS >= 0, "RATE_LIMIT_RPS")
	check(c.RateLimitBurst > 0, "RATE_LIMIT_BURST")
	check(c.HistoryMaxSessions > 0, "HISTORY_MAX_SESSIONS")
	check(c.HistorySessionTTL > 0, "HISTORY_SESSION_TTL")
	_, levelErr := logging.ParseLevel(c.LogLevel)
	check(levelErr == nil, "LOG_LEVEL")
	format := strings.ToLower(strings.TrimSpace(c.LogFormat))
	check(format == "" || format == "json" || format == "text", "LOG_FORMAT")
	return invalid
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
