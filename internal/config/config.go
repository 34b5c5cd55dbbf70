package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the sync engine. Everything
// comes from environment variables; a local .env file is honored in dev.
type Config struct {
	AppEnv string

	// Postgres
	PGHost     string
	PGPort     string
	PGUser     string
	PGPassword string
	PGDatabase string

	// Upstream API
	UpstreamBaseURL      string
	UpstreamTokenURL     string
	UpstreamClientID     string
	UpstreamClientSecret string

	// Operator API
	HTTPPort  int
	JWTSecret string

	// Redis (optional; in-process cache is used when unset)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Engine tuning
	TickInterval       time.Duration
	InvocationBudget   time.Duration
	PageSize           int
	MaxPagesPerBatch   int
	EnrichmentCapacity int

	// Rate budget reserves: refuse upstream work when the observed quota
	// usage leaves less than this much headroom.
	QuotaWindowReserve int
	QuotaDailyReserve  int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if present (ignored in production images)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		PGHost:               getEnv("PG_HOST", "localhost"),
		PGPort:               getEnv("PG_PORT", "5432"),
		PGUser:               os.Getenv("PG_USER"),
		PGPassword:           os.Getenv("PG_PASSWORD"),
		PGDatabase:           os.Getenv("PG_DB"),
		UpstreamBaseURL:      getEnv("UPSTREAM_API_BASE_URL", "https://www.strava.com/api/v3"),
		UpstreamTokenURL:     getEnv("UPSTREAM_TOKEN_URL", "https://www.strava.com/oauth/token"),
		UpstreamClientID:     os.Getenv("UPSTREAM_CLIENT_ID"),
		UpstreamClientSecret: os.Getenv("UPSTREAM_CLIENT_SECRET"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		RedisHost:            os.Getenv("REDIS_HOST"),
		RedisPort:            getEnv("REDIS_PORT", "6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		HTTPPort:             getEnvInt("HTTP_PORT", 8080),
		TickInterval:         getEnvDuration("SYNC_TICK_INTERVAL", time.Minute),
		InvocationBudget:     getEnvDuration("SYNC_INVOCATION_BUDGET", 25*time.Second),
		PageSize:             getEnvInt("SYNC_PAGE_SIZE", 200),
		MaxPagesPerBatch:     getEnvInt("SYNC_MAX_PAGES_PER_BATCH", 3),
		EnrichmentCapacity:   getEnvInt("SYNC_ENRICHMENT_CAPACITY", 15),
		QuotaWindowReserve:   getEnvInt("QUOTA_WINDOW_RESERVE", 10),
		QuotaDailyReserve:    getEnvInt("QUOTA_DAILY_RESERVE", 50),
	}

	if cfg.PGUser == "" || cfg.PGDatabase == "" {
		return nil, fmt.Errorf("PG_USER and PG_DB are required")
	}

	if cfg.UpstreamClientID == "" || cfg.UpstreamClientSecret == "" {
		fmt.Println("Warning: UPSTREAM_CLIENT_ID or UPSTREAM_CLIENT_SECRET not set, token refresh will not work")
	}

	return cfg, nil
}

// PostgresDSN builds the connection string used by both sqlx and GORM.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
