package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GEMINI_TIMEOUT", "not-a-duration")

	cfg := LoadConfig()
	if cfg.Gemini.APIKey != "" {
		t.Fatalf("expected empty api key, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Timeout != 10*time.Second {
		t.Fatalf("expected 10s timeout for invalid value, got %s", cfg.Gemini.Timeout)
	}
	if cfg.Session.Backend != "cookie" {
		t.Fatalf("unexpected session backend: %q", cfg.Session.Backend)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("GEMINI_API_KEY", "  key  ")
	t.Setenv("GEMINI_TIMEOUT", "3s")
	t.Setenv("SESSION_SECURE", "true")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")

	cfg := LoadConfig()
	if cfg.ServerPort != 9090 {
		t.Fatalf("unexpected port: %d", cfg.ServerPort)
	}
	if cfg.SecretKey != "s3cret" {
		t.Fatalf("unexpected secret: %q", cfg.SecretKey)
	}
	if cfg.Gemini.APIKey != "key" {
		t.Fatalf("expected trimmed api key, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Timeout != 3*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.Gemini.Timeout)
	}
	if !cfg.Session.Secure {
		t.Fatalf("expected secure cookies")
	}
	if len(cfg.MQ.Kafka.Brokers) != 2 || cfg.MQ.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.MQ.Kafka.Brokers)
	}
}
