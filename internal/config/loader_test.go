package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var managedKeys = []string{
	ConfigFileEnv,
	"SCHEDULER_HTTP_PORT",
	"SCHEDULER_SQLITE_PATH",
	"SCHEDULER_TIMEZONE",
	"SCHEDULER_STORAGE_TIMEOUT",
	"SCHEDULER_RECURRENCE_WORKERS",
	"SCHEDULER_WORKER_LIST_LIMIT",
	"SCHEDULER_ADMIN_TOKEN_HASH",
	"SCHEDULER_RATE_LIMIT_RPS",
	"SCHEDULER_RATE_LIMIT_BURST",
	"SCHEDULER_HISTORY_MAX_SESSIONS",
	"SCHEDULER_HISTORY_SESSION_TTL",
	"SCHEDULER_OTEL_ENDPOINT",
	"SCHEDULER_LOG_LEVEL",
	"SCHEDULER_LOG_FORMAT",
}

// clearEnv unsets every managed variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 || cfg.Addr() != ":8080" {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLitePath != "scheduler.db" {
			t.Fatalf("unexpected default SQLite path: %q", cfg.SQLitePath)
		}
		if cfg.StorageTimeout != 5*time.Second || cfg.RecurrenceWorkers != 4 || cfg.WorkerListLimit != 200 {
			t.Fatalf("unexpected storage defaults: %+v", cfg)
		}
		if cfg.HistoryMaxSessions != 256 || cfg.HistorySessionTTL != 12*time.Hour {
			t.Fatalf("unexpected history defaults: %+v", cfg)
		}
		if cfg.Location == nil || cfg.Location.String() != "Asia/Tokyo" {
			t.Fatalf("expected Asia/Tokyo, got %v", cfg.Location)
		}
		if cfg.AdminTokenHash != "" || cfg.OTelEndpoint != "" {
			t.Fatalf("optional features must default off: %+v", cfg)
		}
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "9090")
		t.Setenv("SCHEDULER_STORAGE_TIMEOUT", "750ms")
		t.Setenv("SCHEDULER_TIMEZONE", "UTC")
		t.Setenv("SCHEDULER_RATE_LIMIT_RPS", "2.5")
		t.Setenv("SCHEDULER_LOG_FORMAT", "text")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.StorageTimeout != 750*time.Millisecond {
			t.Fatalf("overrides not applied: %+v", cfg)
		}
		if cfg.RateLimitRPS != 2.5 || cfg.LogFormat != "text" || cfg.Location != time.UTC {
			t.Fatalf("overrides not applied: %+v", cfg)
		}
	})

	t.Run("yaml file sits between defaults and environment", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "roster.yaml")
		content := "http_port: 7070\nsqlite_path: /var/lib/roster.db\nhistory_session_ttl: 30m\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv(ConfigFileEnv, path)
		t.Setenv("SCHEDULER_HTTP_PORT", "6060")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 6060 {
			t.Fatalf("environment must win over the file, got %d", cfg.HTTPPort)
		}
		if cfg.SQLitePath != "/var/lib/roster.db" || cfg.HistorySessionTTL != 30*time.Minute {
			t.Fatalf("file values not applied: %+v", cfg)
		}
	})

	t.Run("rejects unknown yaml keys", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "roster.yaml")
		if err := os.WriteFile(path, []byte("session_secret: nope\n"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv(ConfigFileEnv, path)

		_, err := Load()
		if err == nil || !strings.HasPrefix(err.Error(), "設定ファイルの形式が不正です") {
			t.Fatalf("expected a config file error, got %v", err)
		}
	})

	t.Run("errors on invalid values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "-1")
		t.Setenv("SCHEDULER_RECURRENCE_WORKERS", "0")
		t.Setenv("SCHEDULER_ADMIN_TOKEN_HASH", "plain")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "環境変数の値が不正です: SCHEDULER_HTTP_PORT, SCHEDULER_RECURRENCE_WORKERS, SCHEDULER_ADMIN_TOKEN_HASH"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("errors on unparsable values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_STORAGE_TIMEOUT", "soon")

		_, err := Load()
		if err == nil || !strings.HasPrefix(err.Error(), "環境変数の値が不正です") {
			t.Fatalf("expected a localized parse error, got %v", err)
		}
	})

	t.Run("errors on unknown timezone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus")

		_, err := Load()
		if err == nil || err.Error() != "環境変数の値が不正です: SCHEDULER_TIMEZONE" {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
