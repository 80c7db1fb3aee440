package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// Mapbox geocoding configuration.
	MapboxToken   string
	MapboxTimeout time.Duration

	// OpenRouter generative-text configuration.
	OpenRouterKey   string
	OpenRouterModel string
	AICacheTTL      time.Duration
	AIMaxRetries    int

	// Cache selection: empty RedisAddr means the in-memory store.
	RedisAddr string

	// Session token signing.
	JWTSecret string

	// Twilio SMS delivery.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Favorites store.
	SQLitePath string

	// Search analytics: empty brokers disables publishing.
	KafkaBrokers        []string
	KafkaAnalyticsTopic string
}

// Load reads configuration from environment variables, applying
// defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	aiCacheTTL, err := parseDuration("AI_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}

	aiMaxRetries, err := parseInt("AI_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":3000"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		AllowedOrigins:  splitList(envOrDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),

		MapboxToken:   os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout: mapboxTimeout,

		OpenRouterKey:   os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel: envOrDefault("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		AICacheTTL:      aiCacheTTL,
		AIMaxRetries:    aiMaxRetries,

		RedisAddr: os.Getenv("REDIS_ADDR"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),

		SQLitePath: envOrDefault("SQLITE_PATH", "brewfinder.db"),

		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaAnalyticsTopic: envOrDefault("KAFKA_ANALYTICS_TOPIC", "search-events"),
	}

	if cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_TOKEN is required")
	}
	if cfg.AIMaxRetries < 0 {
		return nil, errors.New("AI_MAX_RETRIES must not be negative")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaAnalyticsTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_ANALYTICS_TOPIC is empty")
	}

	return cfg, nil
}

// AnalyticsEnabled reports whether search events should be published.
func (c *Config) AnalyticsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := envOrDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
