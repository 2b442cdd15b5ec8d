// Package config provides configuration loading and management for the
// application.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// HTTP server port
	Port string

	// Base URL of the upstream yields aggregator
	LlamaURL string

	// Upstream request timeout
	RequestTimeout time.Duration

	// How long a fetched snapshot stays fresh
	CacheTTL time.Duration

	// Background refresh interval
	RefreshInterval time.Duration

	// TVL in USD below which a pool is flagged as thin
	ThinTVLThreshold float64

	// TVL in USD for the stronger thin warning tier
	VeryThinTVLThreshold float64

	// Assumed LP fee share of volume for derived estimates
	FeeRate float64

	// Days covered by the upstream volume figure
	VolumeWindowDays float64

	// Default result cap for pool listings
	MaxResults int

	// IQR fence width for outlier detection
	OutlierIQRMultiplier float64

	// Snapshot guard settings
	MinPoolFraction  float64
	MaxMedianAPYJump float64
	GuardCooldown    time.Duration

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Webhook export
	WebhookEnabled  bool
	WebhookURL      string
	WebhookAPIKey   string
	WebhookInterval time.Duration

	// Response signing
	SigningEnabled bool
}

// Load creates a new Config from environment variables.
func Load() Config {
	return Config{
		Port:                 GetEnvOrDefault("PORT", "8080"),
		LlamaURL:             GetEnvOrDefault("LLAMA_URL", "https://yields.llama.fi"),
		RequestTimeout:       GetEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		CacheTTL:             GetEnvAsDuration("CACHE_TTL", 15*time.Minute),
		RefreshInterval:      GetEnvAsDuration("REFRESH_INTERVAL", 15*time.Minute),
		ThinTVLThreshold:     GetEnvAsFloat("THIN_TVL_THRESHOLD", 250_000),
		VeryThinTVLThreshold: GetEnvAsFloat("VERY_THIN_TVL_THRESHOLD", 100_000),
		FeeRate:              GetEnvAsFloat("FEE_RATE", 0.003),
		VolumeWindowDays:     GetEnvAsFloat("VOLUME_WINDOW_DAYS", 7),
		MaxResults:           GetEnvAsInt("MAX_RESULTS", 50),
		OutlierIQRMultiplier: GetEnvAsFloat("OUTLIER_IQR_MULTIPLIER", 1.5),
		MinPoolFraction:      GetEnvAsFloat("MIN_POOL_FRACTION", 0.5),
		MaxMedianAPYJump:     GetEnvAsFloat("MAX_MEDIAN_APY_JUMP", 10),
		GuardCooldown:        GetEnvAsDuration("GUARD_COOLDOWN", 5*time.Minute),
		RateLimitRPS:         GetEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:       GetEnvAsInt("RATE_LIMIT_BURST", 20),
		OtelEndpoint:         GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		WebhookEnabled:       GetEnvAsBool("WEBHOOK_ENABLED", false),
		WebhookURL:           GetEnvOrDefault("WEBHOOK_URL", ""),
		WebhookAPIKey:        GetEnvOrDefault("WEBHOOK_API_KEY", ""),
		WebhookInterval:      GetEnvAsDuration("WEBHOOK_INTERVAL", time.Minute),
		SigningEnabled:       GetEnvAsBool("SIGNING_ENABLED", false),
	}
}

// GetEnv retrieves an environment variable and whether it exists.
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default
// value if not set.
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a
// default value.
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a
// default value.
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a
// default value.
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a
// default value.
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
