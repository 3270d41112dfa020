package app

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	UpstreamURL string // Required: base URL of the backend API
	CSRFSecret  string // Required: HMAC secret for CSRF tokens, 32-64 bytes
	Issuer      string // Optional: issuer claim for CSRF tokens (default: tablefare-bff)

	SessionCookie string // Optional: session cookie name (default: tf_session)
	CSRFCookie    string // Optional: readable CSRF cookie name (default: csrf_token)
	Runtime       string // Optional: runtime profile (standard, edge) (default: standard)
	RedisAddr     string // Optional: Redis address; empty selects in-memory stores

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	ThrottleRPS         float64       // Process-wide inflow ceiling (default: 200)
	ThrottleBurst       int           // Throttle burst allowance (default: 400)
	ReplaySweepInterval time.Duration // In-memory replay store sweep cadence (default: 5m)
}

func LoadConfig() Config {
	cfg := Config{
		UpstreamURL: os.Getenv("BFF_UPSTREAM_URL"),
		CSRFSecret:  os.Getenv("BFF_CSRF_SECRET"),
		Issuer:      getEnvOrDefault("BFF_ISSUER", "tablefare-bff"),

		SessionCookie: getEnvOrDefault("BFF_SESSION_COOKIE", "tf_session"),
		CSRFCookie:    getEnvOrDefault("BFF_CSRF_COOKIE", "csrf_token"),
		Runtime:       getEnvOrDefault("BFF_RUNTIME", "standard"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		ThrottleRPS:         getEnvFloatOrDefault("THROTTLE_RPS", 200),
		ThrottleBurst:       getEnvIntOrDefault("THROTTLE_BURST", 400),
		ReplaySweepInterval: getEnvDurationOrDefault("REPLAY_SWEEP_INTERVAL", 5*time.Minute),
	}

	return cfg
}

// Validate rejects configurations the service cannot safely run with.
// Secret length is checked again by the token signer; checking here
// keeps the failure at startup with a readable message.
func (cfg Config) Validate() error {
	if cfg.UpstreamURL == "" {
		return fmt.Errorf("BFF_UPSTREAM_URL is required")
	}
	if len(cfg.CSRFSecret) < 32 || len(cfg.CSRFSecret) > 64 {
		return fmt.Errorf("BFF_CSRF_SECRET must be 32-64 bytes, got %d", len(cfg.CSRFSecret))
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are taken as seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
