package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	CORSOrigins []string

	DatabaseURL string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	AggregatorBaseURL   string
	AggregatorSecretID  string
	AggregatorSecretKey string
	AggregatorTimeout   time.Duration

	// Pause after every upstream call within one account.
	CallDelay time.Duration
	// Pause before moving to the next account.
	AccountDelay time.Duration

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	// RedisAddr enables the Redis institution cache when set.
	RedisAddr     string
	RedisPassword string
}

// Load reads configuration from the process environment. Call godotenv.Load
// first if a .env file should be honoured.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "bank_sync"),
		DBSSLMode:           getEnv("DB_SSLMODE", "disable"),
		AggregatorBaseURL:   getEnv("AGGREGATOR_BASE_URL", "https://bankaccountdata.gocardless.com"),
		AggregatorSecretID:  os.Getenv("AGGREGATOR_SECRET_ID"),
		AggregatorSecretKey: os.Getenv("AGGREGATOR_SECRET_KEY"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.DBPort, err = getInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.AggregatorTimeout, err = getDuration("AGGREGATOR_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.CallDelay, err = getDuration("SYNC_CALL_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.AccountDelay, err = getDuration("SYNC_ACCOUNT_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.BreakerOpenTimeout, err = getDuration("BREAKER_OPEN_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}
	failures, err := getInt("BREAKER_MAX_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	if failures < 1 {
		return nil, fmt.Errorf("config: BREAKER_MAX_FAILURES must be positive, got %d", failures)
	}
	cfg.BreakerMaxFailures = uint32(failures)

	if cfg.AggregatorSecretID == "" || cfg.AggregatorSecretKey == "" {
		return nil, fmt.Errorf("config: AGGREGATOR_SECRET_ID and AGGREGATOR_SECRET_KEY are required")
	}
	return cfg, nil
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from
// the DB_* variables.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", key)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
