package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Endpoint != "http://127.0.0.1:8080/v1/chat/completions" {
		t.Errorf("Unexpected default endpoint: %s", cfg.Endpoint)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Expected default max retries 3, got %d", cfg.MaxRetries)
	}
	if !cfg.FallbackEnabled {
		t.Error("Expected fallback enabled by default")
	}
	if cfg.BackoffBase != 2 {
		t.Errorf("Expected default backoff base 2, got %d", cfg.BackoffBase)
	}
	if cfg.RequestTimeout != 120*time.Second {
		t.Errorf("Expected 120s request timeout, got %s", cfg.RequestTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("VSCODE_LLM_ENDPOINT", "http://localhost:9090/v1/chat/completions")
	t.Setenv("VSCODE_MAX_RETRIES", "5")
	t.Setenv("VSCODE_LLM_FALLBACK", "false")
	t.Setenv("VSCODE_BACKOFF_BASE", "3")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Endpoint != "http://localhost:9090/v1/chat/completions" {
		t.Errorf("Endpoint override ignored: %s", cfg.Endpoint)
	}
	if cfg.MaxRetries != 5 || cfg.BackoffBase != 3 {
		t.Errorf("Retry overrides ignored: %d %d", cfg.MaxRetries, cfg.BackoffBase)
	}
	if cfg.FallbackEnabled {
		t.Error("Expected fallback disabled")
	}
	if !cfg.FallbackAvailable() {
		t.Error("Expected fallback available with API key set")
	}
}

func TestLoad_InvalidRetries(t *testing.T) {
	t.Setenv("VSCODE_MAX_RETRIES", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Expected error for zero retries")
	}

	t.Setenv("VSCODE_MAX_RETRIES", "abc")
	if _, err := Load(); err == nil {
		t.Fatal("Expected error for non-numeric retries")
	}
}

func TestFallbackAvailable(t *testing.T) {
	cfg := &Config{}
	if cfg.FallbackAvailable() {
		t.Error("Expected unavailable without API key")
	}
	cfg.AnthropicAPIKey = "sk-test"
	if !cfg.FallbackAvailable() {
		t.Error("Expected available with API key")
	}
}
