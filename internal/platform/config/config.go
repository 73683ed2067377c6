package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                  string
	DatabaseURL           string
	JWTSecret             string
	DataEncryptionKey     string
	Environment           string
	SeedTenantName        string
	RunMigrations         bool
	RunSeed               bool
	MaxBodyBytes          int64
	RateLimitPerMinute    int
	MetricsEnabled        bool
	CPISPolicyFile        string
	CPISWorkers           int
	CPISHistoryLimit      int
	CPISRecomputeInterval time.Duration
	ScorecardDir          string
}

// LoadDotEnv reads the named files (or .env) into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			present = append(present, file)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

func Load() Config {
	return Config{
		Addr:                  getEnv("APP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		DataEncryptionKey:     getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:           getEnv("APP_ENV", "development"),
		SeedTenantName:        getEnv("SEED_TENANT_NAME", "Default Tenant"),
		RunMigrations:         getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:               getEnvBool("RUN_SEED", false),
		MaxBodyBytes:          int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:    getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		MetricsEnabled:        getEnvBool("METRICS_ENABLED", true),
		CPISPolicyFile:        getEnv("CPIS_POLICY_FILE", ""),
		CPISWorkers:           getEnvInt("CPIS_WORKERS", 0),
		CPISHistoryLimit:      getEnvInt("CPIS_HISTORY_LIMIT", 12),
		CPISRecomputeInterval: getEnvDuration("CPIS_RECOMPUTE_INTERVAL", 24*time.Hour),
		ScorecardDir:          getEnv("SCORECARD_DIR", "storage/scorecards"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for scorecard encryption at rest")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.CPISWorkers < 0 {
		return fmt.Errorf("CPIS_WORKERS must not be negative")
	}
	if c.CPISHistoryLimit < 2 {
		return fmt.Errorf("CPIS_HISTORY_LIMIT must be at least 2 for a trajectory")
	}
	if c.CPISRecomputeInterval < 0 {
		return fmt.Errorf("CPIS_RECOMPUTE_INTERVAL must not be negative")
	}
	if strings.TrimSpace(c.ScorecardDir) == "" {
		return fmt.Errorf("SCORECARD_DIR is required")
	}
	return nil
}
