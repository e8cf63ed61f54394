// Package config manages application configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const envPrefix = "QUANTDESK_"

// Config holds all application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Cache       CacheConfig     `toml:"cache"`
	Market      MarketConfig    `toml:"market"`
	Analytics   AnalyticsConfig `toml:"analytics"`
	Auth        AuthConfig      `toml:"auth"`
	CORS        CORSConfig      `toml:"cors"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port            string `toml:"port"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// GetShutdownTimeout parses and returns the graceful shutdown timeout
func (c *ServerConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(c.ShutdownTimeout, 10*time.Second)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Cache backends
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// CacheConfig selects and configures the market data cache store
type CacheConfig struct {
	Backend    string `toml:"backend"`
	RedisURL   string `toml:"redis_url"`
	SQLitePath string `toml:"sqlite_path"`
	MaxEntries int    `toml:"max_entries"`
}

// Market data providers
const (
	ProviderMock  = "mock"
	ProviderYahoo = "yahoo"
)

// MarketConfig configures the upstream market data provider
type MarketConfig struct {
	Provider  string  `toml:"provider"`
	BaseURL   string  `toml:"base_url"`
	Timeout   string  `toml:"timeout"`
	RateLimit float64 `toml:"rate_limit"` // requests per second
	UserAgent string  `toml:"user_agent"`
}

// GetTimeout parses and returns the per-fetch timeout
func (c *MarketConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// AnalyticsConfig holds default analysis assumptions applied when a request omits them
type AnalyticsConfig struct {
	BaseCurrency    string  `toml:"base_currency"`
	Benchmark       string  `toml:"benchmark"`
	RiskFreeRate    float64 `toml:"risk_free_rate"`
	ConfidenceLevel float64 `toml:"confidence_level"`
	Range           string  `toml:"range"`
	Interval        string  `toml:"interval"`
}

// AuthConfig configures optional bearer-token authentication for API clients.
// Auth is enabled when ClientID is set.
type AuthConfig struct {
	JWTSecret        string `toml:"jwt_secret"`
	ClientID         string `toml:"client_id"`
	ClientSecretHash string `toml:"client_secret_hash"` // bcrypt
	TokenExpiry      string `toml:"token_expiry"`
}

// Enabled reports whether API clients must authenticate
func (c *AuthConfig) Enabled() bool {
	return c.ClientID != ""
}

// GetTokenExpiry parses and returns the token lifetime
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	return parseDuration(c.TokenExpiry, 24*time.Hour)
}

// CORSConfig lists browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Backend:    CacheMemory,
			RedisURL:   "redis://localhost:6379/0",
			SQLitePath: "quantdesk.db",
			MaxEntries: 10000,
		},
		Market: MarketConfig{
			Provider:  ProviderMock,
			BaseURL:   "https://query1.finance.yahoo.com",
			Timeout:   "10s",
			RateLimit: 5,
			UserAgent: "Mozilla/5.0 (compatible; quantdesk/1.0)",
		},
		Analytics: AnalyticsConfig{
			BaseCurrency:    "EUR",
			Benchmark:       "SPY",
			RiskFreeRate:    0.03,
			ConfidenceLevel: 0.95,
			Range:           "1y",
			Interval:        "1d",
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-secret-key-change-in-production",
			TokenExpiry: "24h",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

// Load reads configuration from TOML files (later files override earlier
// ones, missing files are skipped) and then applies environment overrides.
func Load(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(c *Config) {
	c.Environment = getEnv("ENV", c.Environment)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ShutdownTimeout = getEnv("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.RedisURL = getEnv("REDIS_URL", c.Cache.RedisURL)
	c.Cache.SQLitePath = getEnv("SQLITE_PATH", c.Cache.SQLitePath)
	c.Cache.MaxEntries = getIntEnv("CACHE_MAX_ENTRIES", c.Cache.MaxEntries)

	c.Market.Provider = getEnv("MARKET_PROVIDER", c.Market.Provider)
	c.Market.BaseURL = getEnv("MARKET_BASE_URL", c.Market.BaseURL)
	c.Market.Timeout = getEnv("MARKET_TIMEOUT", c.Market.Timeout)
	c.Market.RateLimit = getFloatEnv("MARKET_RATE_LIMIT", c.Market.RateLimit)

	c.Analytics.BaseCurrency = getEnv("BASE_CURRENCY", c.Analytics.BaseCurrency)
	c.Analytics.Benchmark = getEnv("BENCHMARK", c.Analytics.Benchmark)
	c.Analytics.RiskFreeRate = getFloatEnv("RISK_FREE_RATE", c.Analytics.RiskFreeRate)
	c.Analytics.ConfidenceLevel = getFloatEnv("CONFIDENCE_LEVEL", c.Analytics.ConfidenceLevel)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.ClientID = getEnv("AUTH_CLIENT_ID", c.Auth.ClientID)
	c.Auth.ClientSecretHash = getEnv("AUTH_CLIENT_SECRET_HASH", c.Auth.ClientSecretHash)
	c.Auth.TokenExpiry = getEnv("AUTH_TOKEN_EXPIRY", c.Auth.TokenExpiry)

	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		c.CORS.AllowedOrigins = splitList(origins)
	}
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheMemory, CacheSQLite, CacheRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	switch c.Market.Provider {
	case ProviderMock, ProviderYahoo:
	default:
		return fmt.Errorf("unknown market data provider %q", c.Market.Provider)
	}

	if c.Analytics.ConfidenceLevel <= 0 || c.Analytics.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence level must be in (0, 1), got %v", c.Analytics.ConfidenceLevel)
	}

	if c.IsProduction() && c.Auth.Enabled() && c.Auth.JWTSecret == NewDefaultConfig().Auth.JWTSecret {
		return errors.New("jwt secret must be set in production")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(envPrefix + key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
