package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	PolicyWait    = "wait"
	PolicyReplace = "replace"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Storage
	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// Rating
	EloKFactor float64

	// Matchmaking
	MatchPolicy string

	// Rate limiting (per client IP)
	RateLimitCapacity int64
	RateLimitRefill   int64

	// Events
	EventsChannel string
	LockTTL       time.Duration

	// CORS
	CORSAllowedOrigins []string
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		SQLitePath:         getEnv("SQLITE_PATH", "wuzzler.db"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		EloKFactor:         parseFloat(getEnv("ELO_K_FACTOR", "32"), 32),
		MatchPolicy:        strings.ToLower(getEnv("MATCH_POLICY", PolicyWait)),
		RateLimitCapacity:  parseInt(getEnv("RATE_LIMIT_CAPACITY", "20"), 20),
		RateLimitRefill:    parseInt(getEnv("RATE_LIMIT_REFILL", "5"), 5),
		EventsChannel:      getEnv("EVENTS_CHANNEL", "wuzzler:events"),
		LockTTL:            parseDuration(getEnv("LOCK_TTL", "5s")),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite, StoreRedis:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}

	switch c.MatchPolicy {
	case PolicyWait, PolicyReplace:
	default:
		return fmt.Errorf("unknown match policy %q", c.MatchPolicy)
	}

	if c.EloKFactor <= 0 {
		return fmt.Errorf("ELO_K_FACTOR must be positive, got %v", c.EloKFactor)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseInt(s string, fallback int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
