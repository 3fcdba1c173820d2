// Package config provides environment-aware configuration management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// Config holds all engine configuration. It is assembled once at process
// start by the external UI/entrypoint (out of scope here) and handed to
// the engine's components.
type Config struct {
	Env Environment

	// App data paths (spec.md §6)
	DataDir string // <app_data>

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string

	// Store Pool (spec.md §4.1)
	PoolCapacity        int
	PoolMaxLifetime     time.Duration
	PoolMaxIdle         time.Duration
	PoolAcquireTimeout  time.Duration
	PoolAcquireBackoff  time.Duration
	PoolPageCacheSize   int
	PoolMmapSizeBytes   int64
	PoolBusyTimeout     time.Duration

	// Crypto Gate (spec.md §4.3)
	SigningPublicKeysHex []string // trusted Ed25519 public keys, hex-encoded
	SessionTokenKeyHex   string   // 32-byte master key, hex-encoded
	ChallengeTTL         time.Duration
	SessionTokenTTL      time.Duration

	// Update Installer (spec.md §4.9)
	AllowedUpdateHosts []string
	UpdatePollInterval time.Duration
	BackupRetention    time.Duration
	ContentDir         string // <app_data>/content
	BackupDir          string // <app_data>/backups

	// Quiz Engine (spec.md §4.8)
	SessionTTL time.Duration

	TestMode bool
}

// Load loads configuration based on the QUIZDD_ENV environment variable,
// optionally overlaying an environment-specific .env file.
func Load() (*Config, error) {
	envStr := os.Getenv("QUIZDD_ENV")
	if envStr == "" {
		envStr = string(Development)
	}

	env, ok := parseEnvironment(envStr)
	if !ok {
		return nil, fmt.Errorf("invalid QUIZDD_ENV: %s (must be development, testing, or production)", envStr)
	}

	configFile := filepath.Join("config", fmt.Sprintf("%s.env", env))
	if err := godotenv.Load(configFile); err != nil {
		// Config file is optional; only warn on non-"file not found" errors
		// (e.g. parse errors) to avoid noisy logs during tests and CI runs.
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("Warning: could not load %s: %v\n", configFile, err)
		}
	}

	cfg := &Config{Env: env}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func parseEnvironment(s string) (Environment, bool) {
	switch Environment(strings.ToLower(s)) {
	case Development:
		return Development, true
	case Testing:
		return Testing, true
	case Production:
		return Production, true
	default:
		return "", false
	}
}

func (c *Config) loadFromEnv() error {
	c.DataDir = getEnv("QUIZDD_DATA_DIR", "./data")
	c.ContentDir = getEnv("QUIZDD_CONTENT_DIR", filepath.Join(c.DataDir, "content"))
	c.BackupDir = getEnv("QUIZDD_BACKUP_DIR", filepath.Join(c.DataDir, "backups"))

	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFormat = getEnv("LOG_FORMAT", "text")
	c.LogOutput = getEnv("LOG_OUTPUT", "stdout")

	c.PoolCapacity = getIntEnv("POOL_CAPACITY", 10)
	c.PoolMaxLifetime = getDurationEnv("POOL_MAX_LIFETIME", time.Hour)
	c.PoolMaxIdle = getDurationEnv("POOL_MAX_IDLE", 10*time.Minute)
	c.PoolAcquireTimeout = getDurationEnv("POOL_ACQUIRE_TIMEOUT", 30*time.Second)
	c.PoolAcquireBackoff = getDurationEnv("POOL_ACQUIRE_BACKOFF", 10*time.Millisecond)
	c.PoolPageCacheSize = getIntEnv("POOL_PAGE_CACHE_SIZE", 1000)
	c.PoolMmapSizeBytes = getInt64Env("POOL_MMAP_SIZE_BYTES", 256*1024*1024)
	c.PoolBusyTimeout = getDurationEnv("POOL_BUSY_TIMEOUT", 5*time.Second)

	c.SigningPublicKeysHex = splitNonEmpty(getEnv("CONTENT_SIGNING_PUBLIC_KEYS", ""), ",")
	c.SessionTokenKeyHex = getEnv("SESSION_TOKEN_KEY", "")
	c.ChallengeTTL = getDurationEnv("PARENTAL_CHALLENGE_TTL", 5*time.Minute)
	c.SessionTokenTTL = getDurationEnv("PARENTAL_SESSION_TOKEN_TTL", time.Hour)

	c.AllowedUpdateHosts = splitNonEmpty(getEnv("UPDATE_ALLOWED_HOSTS", "updates.quizdd.example"), ",")
	c.UpdatePollInterval = getDurationEnv("UPDATE_POLL_INTERVAL", 6*time.Hour)
	c.BackupRetention = getDurationEnv("UPDATE_BACKUP_RETENTION", 30*24*time.Hour)

	c.SessionTTL = getDurationEnv("QUIZ_SESSION_TTL", 4*time.Hour)

	c.TestMode = getBoolEnv("TEST_MODE", false)

	return nil
}

// IsDevelopment reports whether the configured environment is development.
func (c *Config) IsDevelopment() bool { return c.Env == Development }

// IsTesting reports whether the configured environment is testing.
func (c *Config) IsTesting() bool { return c.Env == Testing }

// IsProduction reports whether the configured environment is production.
func (c *Config) IsProduction() bool { return c.Env == Production }

// Validate checks invariants that must hold before the engine starts.
func (c *Config) Validate() error {
	if c.PoolCapacity < 1 {
		return fmt.Errorf("POOL_CAPACITY must be at least 1")
	}
	if c.PoolAcquireTimeout <= 0 {
		return fmt.Errorf("POOL_ACQUIRE_TIMEOUT must be positive")
	}
	if c.IsProduction() {
		if len(c.SigningPublicKeysHex) == 0 {
			return fmt.Errorf("CONTENT_SIGNING_PUBLIC_KEYS must be set in production")
		}
		if c.SessionTokenKeyHex == "" {
			return fmt.Errorf("SESSION_TOKEN_KEY must be set in production")
		}
		if c.TestMode {
			return fmt.Errorf("TEST_MODE must be false in production")
		}
	}
	for _, host := range c.AllowedUpdateHosts {
		if strings.TrimSpace(host) == "" {
			return fmt.Errorf("UPDATE_ALLOWED_HOSTS contains an empty entry")
		}
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitNonEmpty(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
