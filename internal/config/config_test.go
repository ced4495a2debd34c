package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_PORT", "KAFKA_BROKERS", "REMOTE_MODE", "SYNC_INTERVAL_SEC", "PUSH_CONCURRENCY"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.HTTPPort != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.HTTPPort)
	}
	if cfg.KafkaBrokers != nil {
		t.Errorf("expected no Kafka brokers by default, got %v", cfg.KafkaBrokers)
	}
	if cfg.RemoteMode != RemoteHTTP {
		t.Errorf("expected remote mode %q, got %q", RemoteHTTP, cfg.RemoteMode)
	}
	if cfg.SyncInterval != 15*time.Minute {
		t.Errorf("expected 15m sync interval, got %v", cfg.SyncInterval)
	}
	if cfg.PushConcurrency != 4 {
		t.Errorf("expected push concurrency 4, got %d", cfg.PushConcurrency)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("SYNC_INTERVAL_SEC", "30")
	t.Setenv("PUSH_CONCURRENCY", "not-a-number")

	cfg := Load()

	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "a:9092" || cfg.KafkaBrokers[1] != "b:9092" {
		t.Errorf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("expected 30s interval, got %v", cfg.SyncInterval)
	}
	if cfg.PushConcurrency != 4 {
		t.Errorf("invalid value should fall back to default, got %d", cfg.PushConcurrency)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nTASKS_USER=\"alice\"\nREMOTE_URL='http://remote:9000'\nbroken line\nHTTP_PORT=9999\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("TASKS_USER", "")
	t.Setenv("REMOTE_URL", "")
	t.Setenv("HTTP_PORT", "7000")

	LoadEnvFile(path)

	if got := os.Getenv("TASKS_USER"); got != "alice" {
		t.Errorf("expected TASKS_USER=alice, got %q", got)
	}
	if got := os.Getenv("REMOTE_URL"); got != "http://remote:9000" {
		t.Errorf("expected unquoted REMOTE_URL, got %q", got)
	}
	if got := os.Getenv("HTTP_PORT"); got != "7000" {
		t.Errorf("existing env must win, got %q", got)
	}
}
