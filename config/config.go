package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Primary backend
	Endpoint       string // default: http://127.0.0.1:8080/v1/chat/completions
	RequestTimeout time.Duration

	// Retry / fallback
	MaxRetries      int  // default: 3
	FallbackEnabled bool // default: true
	BackoffBase     int  // seconds, default: 2

	// Fallback backend
	AnthropicAPIKey string
	AnthropicModel  string

	// Optional infrastructure
	RedisAddr   string
	CacheTTL    time.Duration
	PostgresDSN string

	// Observability
	OTELExporterType     string // "stdout" or "otlp"
	OTELExporterEndpoint string

	// Client-side throttling (tokens per minute, redis only)
	RateLimitTPM int64
}

// FallbackAvailable reports whether the fallback backend can actually
// be constructed, independent of whether the user enabled it.
func (c *Config) FallbackAvailable() bool {
	return c.AnthropicAPIKey != ""
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Endpoint:             getEnv("VSCODE_LLM_ENDPOINT", "http://127.0.0.1:8080/v1/chat/completions"),
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:       os.Getenv("ANTHROPIC_MODEL"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	retries, err := getEnvInt("VSCODE_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	if retries < 1 {
		return nil, fmt.Errorf("VSCODE_MAX_RETRIES must be >= 1, got %d", retries)
	}
	cfg.MaxRetries = retries

	base, err := getEnvInt("VSCODE_BACKOFF_BASE", 2)
	if err != nil {
		return nil, err
	}
	if base < 1 {
		return nil, fmt.Errorf("VSCODE_BACKOFF_BASE must be >= 1, got %d", base)
	}
	cfg.BackoffBase = base

	timeoutSecs, err := getEnvInt("REQUEST_TIMEOUT", 120)
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout = time.Duration(timeoutSecs) * time.Second

	ttlSecs, err := getEnvInt("CACHE_TTL", 300)
	if err != nil {
		return nil, err
	}
	cfg.CacheTTL = time.Duration(ttlSecs) * time.Second

	cfg.FallbackEnabled = getEnv("VSCODE_LLM_FALLBACK", "true") == "true"

	tpmStr := getEnv("RATE_LIMIT_TPM", "100000")
	tpm, err := strconv.ParseInt(tpmStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_TPM: %w", err)
	}
	cfg.RateLimitTPM = tpm

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
