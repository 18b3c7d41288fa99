package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all configuration for the dashboard process.
type Config struct {
	// HTTP surface
	Port string

	// Backend
	BackendURL     string
	RequestTimeout time.Duration
	RatePerSec     float64
	Burst          int

	// Polling
	PricePollInterval     time.Duration
	PortfolioPollInterval time.Duration
	PositionPollInterval  time.Duration

	// Local client state
	DatabaseURL   string
	RedisURL      string
	LocalCacheTTL time.Duration

	// Logging
	LogLevel string
	LogFile  string

	// Presentation
	Locale            string
	CurrencySymbol    string
	FallbackCoinsFile string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		BackendURL:            getEnvOrDefault("BACKEND_URL", "http://localhost:8000/api/"),
		RequestTimeout:        getEnvDurationOrDefault("REQUEST_TIMEOUT", 15*time.Second),
		RatePerSec:            getEnvFloatOrDefault("GATEWAY_RATE_PER_SEC", 10),
		Burst:                 getEnvIntOrDefault("GATEWAY_BURST", 5),
		PricePollInterval:     getEnvDurationOrDefault("PRICE_POLL_INTERVAL", 30*time.Second),
		PortfolioPollInterval: getEnvDurationOrDefault("PORTFOLIO_POLL_INTERVAL", 60*time.Second),
		PositionPollInterval:  getEnvDurationOrDefault("POSITION_POLL_INTERVAL", 30*time.Second),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		LocalCacheTTL:         getEnvDurationOrDefault("LOCAL_CACHE_TTL", 5*time.Minute),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:               getEnvOrDefault("LOG_FILE", "logs/userpanel.log"),
		Locale:                getEnvOrDefault("LOCALE", "tr"),
		CurrencySymbol:        getEnvOrDefault("CURRENCY_SYMBOL", "₺"),
		FallbackCoinsFile:     os.Getenv("FALLBACK_COINS_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects non-positive intervals, an unusable backend URL and an
// unknown locale.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: BACKEND_URL %q must be an absolute URL", ErrInvalidConfig, c.BackendURL)
	}

	durations := []struct {
		name string
		val  time.Duration
	}{
		{"REQUEST_TIMEOUT", c.RequestTimeout},
		{"PRICE_POLL_INTERVAL", c.PricePollInterval},
		{"PORTFOLIO_POLL_INTERVAL", c.PortfolioPollInterval},
		{"POSITION_POLL_INTERVAL", c.PositionPollInterval},
	}
	for _, d := range durations {
		if d.val <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, d.name, d.val)
		}
	}
	if c.LocalCacheTTL < 0 {
		return fmt.Errorf("%w: LOCAL_CACHE_TTL must not be negative", ErrInvalidConfig)
	}
	if c.RatePerSec <= 0 || c.Burst < 1 {
		return fmt.Errorf("%w: gateway rate %v/s burst %d", ErrInvalidConfig, c.RatePerSec, c.Burst)
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("%w: LOCALE %q: %v", ErrInvalidConfig, c.Locale, err)
	}
	return nil
}

// LocaleTag returns the parsed locale, Turkish when it does not parse.
func (c *Config) LocaleTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Turkish
	}
	return tag
}

// Addr is the listen address of the HTTP surface.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDurationOrDefault accepts Go durations ("30s") and bare integers,
// read as seconds.
func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("ignoring unparsable duration", "key", key, "value", val)
	return defaultVal
}
