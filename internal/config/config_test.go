package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	for _, k := range []string{"PORT", "LOG_LEVEL", "DIALOGUE_SILENCE_TIMEOUT_MS", "DIALOGUE_HARD_TIMEOUT_MS", "REDIS_ADDR", "CLIENT_ORIGIN_PATTERNS"} {
		os.Unsetenv(k)
	}

	c := Load()

	if c.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", c.Server.Port)
	}
	if c.Server.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", c.Server.LogLevel)
	}
	if c.SilenceTimeout() != 2500*time.Millisecond || c.HardTimeout() != 7*time.Second {
		t.Fatalf("unexpected timeouts: %s / %s", c.SilenceTimeout(), c.HardTimeout())
	}
	if c.Redis.Addr != "" || c.Redis.QueueKey != "triage:queue" {
		t.Fatalf("unexpected redis defaults: %+v", c.Redis)
	}
	if len(c.Client.OriginPatterns) != 0 {
		t.Fatalf("expected no origin patterns, got %v", c.Client.OriginPatterns)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DIALOGUE_SILENCE_TIMEOUT_MS", "3000")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CLIENT_ORIGIN_PATTERNS", "triage.local, *.example.org")

	c := Load()

	if c.SilenceTimeout() != 3*time.Second {
		t.Fatalf("expected 3s silence timeout, got %s", c.SilenceTimeout())
	}
	if c.Redis.Addr != "localhost:6379" {
		t.Fatalf("expected redis addr from env, got %q", c.Redis.Addr)
	}
	if len(c.Client.OriginPatterns) != 2 || c.Client.OriginPatterns[1] != "*.example.org" {
		t.Fatalf("unexpected origin patterns: %v", c.Client.OriginPatterns)
	}
}
