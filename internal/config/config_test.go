package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"CODEBOOK_ADDR", "CODEBOOK_LOG_LEVEL", "CODEBOOK_LOG_FORMAT", "REDIS_URL", "CODEBOOK_LOCK_TTL_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log settings = %q/%q, want info/text", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.RedisURL)
	}
	if cfg.LockTTL != 30*time.Second {
		t.Errorf("LockTTL = %v, want 30s", cfg.LockTTL)
	}
	if cfg.DBPath == "" {
		t.Error("DBPath is empty")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CODEBOOK_DB", "/tmp/study.db")
	t.Setenv("CODEBOOK_ADDR", "127.0.0.1:9000")
	t.Setenv("REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("CODEBOOK_LOCK_TTL_SECONDS", "5")

	cfg := Load()
	if cfg.DBPath != "/tmp/study.db" || cfg.Addr != "127.0.0.1:9000" || cfg.RedisURL != "redis://localhost:6379/2" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.LockTTL != 5*time.Second {
		t.Errorf("LockTTL = %v, want 5s", cfg.LockTTL)
	}
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("CODEBOOK_LOCK_TTL_SECONDS", "soon")
	if got := Load().LockTTL; got != 30*time.Second {
		t.Errorf("LockTTL = %v, want fallback 30s", got)
	}
}
