package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional: empty URL disables persistence)
	Database DatabaseConfig

	// Redis (optional run cache)
	Redis RedisConfig

	// Filter defaults for runs that do not carry their own options
	Filter FilterConfig

	// HTTP API
	API APIConfig

	// Periodic re-filter job
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration // run snapshot expiry
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// FilterConfig holds default filter settings
type FilterConfig struct {
	Kind       string  // strike, discard, expiry_forward
	Smoothing  float64 // λ in [0,1]
	StrikeUnit string  // output strike unit
	PriceUnit  string  // output price unit
}

// APIConfig holds HTTP API limits
type APIConfig struct {
	RateLimit       float64 // requests per second per client
	Burst           int
	SubmitPerMinute int // POST /api/runs per client, shared through Redis
	MaxRuns         int // in-memory run registry size
}

// SchedulerConfig holds the periodic re-filter job settings
type SchedulerConfig struct {
	Enabled    bool
	Spec       string // cron spec, seconds field included
	InputPath  string // CSV/XLSX path or http(s) URL
	ConfigPath string // YAML run config (optional)

	// Units of the scheduled input file
	InputPriceUnit  string
	InputStrikeUnit string

	// Stored runs older than Retention are pruned on PruneSpec (database only)
	Retention time.Duration
	PruneSpec string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			TTL:      getEnvAsDuration("REDIS_RUN_TTL", "24h"),
		},

		Filter: FilterConfig{
			Kind:       getEnv("FILTER_KIND", "strike"),
			Smoothing:  getEnvAsFloat("FILTER_SMOOTHING", 0),
			StrikeUnit: getEnv("FILTER_STRIKE_UNIT", "strike"),
			PriceUnit:  getEnv("FILTER_PRICE_UNIT", "vol"),
		},

		API: APIConfig{
			RateLimit:       getEnvAsFloat("API_RATE_LIMIT", 10),
			Burst:           getEnvAsInt("API_BURST", 20),
			SubmitPerMinute: getEnvAsInt("API_SUBMIT_PER_MINUTE", 60),
			MaxRuns:         getEnvAsInt("API_MAX_RUNS", 256),
		},

		Scheduler: SchedulerConfig{
			Enabled:    getEnvAsBool("SCHEDULER_ENABLED", false),
			Spec:       getEnv("SCHEDULER_SPEC", "0 */15 * * * *"),
			InputPath:  getEnv("SCHEDULER_INPUT", ""),
			ConfigPath: getEnv("SCHEDULER_CONFIG", ""),

			InputPriceUnit:  getEnv("SCHEDULER_PRICE_UNIT", "vol"),
			InputStrikeUnit: getEnv("SCHEDULER_STRIKE_UNIT", "strike"),

			Retention: getEnvAsDuration("SCHEDULER_RETENTION", "720h"),
			PruneSpec: getEnv("SCHEDULER_PRUNE_SPEC", "0 0 3 * * *"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Filter.Smoothing < 0 || c.Filter.Smoothing > 1 {
		return fmt.Errorf("FILTER_SMOOTHING must be in [0,1], got %v", c.Filter.Smoothing)
	}

	if c.API.RateLimit <= 0 || c.API.Burst < 1 {
		return fmt.Errorf("API_RATE_LIMIT must be > 0 and API_BURST >= 1")
	}

	if c.API.SubmitPerMinute < 1 || c.API.MaxRuns < 1 {
		return fmt.Errorf("API_SUBMIT_PER_MINUTE and API_MAX_RUNS must be >= 1")
	}

	if c.Scheduler.Enabled && c.Scheduler.InputPath == "" {
		return fmt.Errorf("SCHEDULER_INPUT is required when SCHEDULER_ENABLED is set")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
