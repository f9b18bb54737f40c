// Package config loads the application configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Kinderpedia API
	Kinderpedia KinderpediaConfig

	// Sync behavior
	Sync SyncConfig

	// HTTP interface
	HTTP HTTPConfig

	// Observability
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool

	// Timezone the kindergarten reports clock times in. Week boundaries
	// and event timestamps are computed in this zone.
	Timezone string
	Location *time.Location

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Enable for development without Redis; reads fall through to the
	// database.
	Disabled bool
}

// KinderpediaConfig holds the remote API settings.
type KinderpediaConfig struct {
	BaseURL  string
	APIKey   string
	Email    string
	Password string

	RequestTimeout     time.Duration
	MinRequestInterval time.Duration

	// Circuit breaker settings
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

// SyncConfig holds the sync cycle tuning.
type SyncConfig struct {
	// RefreshInterval is the live current-week poll period.
	RefreshInterval time.Duration

	// ChildrenRefreshInterval is the account reconciliation period.
	ChildrenRefreshInterval time.Duration

	// BackfillRecoveryInterval is how often suspended walks are resumed.
	BackfillRecoveryInterval time.Duration

	// BackfillStepDelay is the fixed spacing between backfill fetches.
	BackfillStepDelay time.Duration

	// EmptyWeekRetryLimit is the bounded retry budget for an empty week
	// before it is accepted as the enrollment boundary.
	EmptyWeekRetryLimit int

	// Weekly archive transition clock time (Monday, app timezone).
	ArchiveHour   int
	ArchiveMinute int
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// Load loads configuration from environment variables. A .env file in
// the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App:           loadAppConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Kinderpedia:   loadKinderpediaConfig(),
		Sync:          loadSyncConfig(),
		HTTP:          loadHTTPConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))
	timezone := getEnv("APP_TIMEZONE", "Europe/Bucharest")

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}

	return AppConfig{
		Name:            getEnv("APP_NAME", "kinderpedia-sync"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("APP_DEBUG", false),
		Timezone:        timezone,
		Location:        loc,
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		Name:            getEnv("DB_NAME", "kinderpedia"),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxConns:        getEnvInt("DB_MAX_CONNS", 5),
		MinConns:        getEnvInt("DB_MIN_CONNS", 1),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		ConnectTimeout:  getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:         getEnv("REDIS_HOST", "localhost"),
		Port:         getEnvInt("REDIS_PORT", 6379),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           getEnvInt("REDIS_DB", 0),
		DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		Disabled:     getEnvBool("REDIS_DISABLED", false),
	}
}

func loadKinderpediaConfig() KinderpediaConfig {
	return KinderpediaConfig{
		BaseURL:                 getEnv("KINDERPEDIA_BASE_URL", "https://app.kinderpedia.co"),
		APIKey:                  getEnv("KINDERPEDIA_API_KEY", ""),
		Email:                   getEnv("KINDERPEDIA_EMAIL", ""),
		Password:                getEnv("KINDERPEDIA_PASSWORD", ""),
		RequestTimeout:          getEnvDuration("KINDERPEDIA_REQUEST_TIMEOUT", 30*time.Second),
		MinRequestInterval:      getEnvDuration("KINDERPEDIA_MIN_REQUEST_INTERVAL", 500*time.Millisecond),
		CircuitBreakerThreshold: getEnvInt("KINDERPEDIA_CB_THRESHOLD", 5),
		CircuitBreakerTimeout:   getEnvDuration("KINDERPEDIA_CB_TIMEOUT", 60*time.Second),
	}
}

func loadSyncConfig() SyncConfig {
	return SyncConfig{
		RefreshInterval:          getEnvDuration("SYNC_REFRESH_INTERVAL", 15*time.Minute),
		ChildrenRefreshInterval:  getEnvDuration("SYNC_CHILDREN_REFRESH_INTERVAL", 24*time.Hour),
		BackfillRecoveryInterval: getEnvDuration("SYNC_BACKFILL_RECOVERY_INTERVAL", 6*time.Hour),
		BackfillStepDelay:        getEnvDuration("SYNC_BACKFILL_STEP_DELAY", 5*time.Second),
		EmptyWeekRetryLimit:      getEnvInt("SYNC_EMPTY_WEEK_RETRY_LIMIT", 2),
		ArchiveHour:              getEnvInt("SYNC_ARCHIVE_HOUR", 3),
		ArchiveMinute:            getEnvInt("SYNC_ARCHIVE_MINUTE", 0),
	}
}

func loadHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Host:         getEnv("HTTP_HOST", "0.0.0.0"),
		Port:         getEnvInt("HTTP_PORT", 8080),
		ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Kinderpedia.Email == "" {
		errs = append(errs, "KINDERPEDIA_EMAIL is required")
	}
	if c.Kinderpedia.Password == "" {
		errs = append(errs, "KINDERPEDIA_PASSWORD is required")
	}

	if c.App.Environment == EnvProduction && c.Database.Password == "" {
		errs = append(errs, "DB_PASSWORD is required in production")
	}

	if c.Sync.ArchiveHour < 0 || c.Sync.ArchiveHour > 23 {
		errs = append(errs, "SYNC_ARCHIVE_HOUR must be 0-23")
	}
	if c.Sync.ArchiveMinute < 0 || c.Sync.ArchiveMinute > 59 {
		errs = append(errs, "SYNC_ARCHIVE_MINUTE must be 0-59")
	}
	if c.Sync.EmptyWeekRetryLimit < 0 {
		errs = append(errs, "SYNC_EMPTY_WEEK_RETRY_LIMIT must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
