package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverRedis    = "redis"
)

// Config holds all configuration values
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Verify   VerifyConfig
	Metrics  MetricsConfig
}

// ServerConfig holds server configuration. TrustedProxies lists the proxy
// IPs/CIDRs whose forwarding headers are honored; empty trusts none.
type ServerConfig struct {
	Host           string
	Port           string
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	TrustedProxies []string
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// StoreConfig selects the key store backend
type StoreConfig struct {
	Driver string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// SQLiteConfig holds the SQLite file location
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL       string
	Password  string
	KeyPrefix string
}

// CORSConfig holds allowed origins
type CORSConfig struct {
	AllowedOrigins []string
}

// VerifyConfig holds the per-IP limit for the verify endpoint
type VerifyConfig struct {
	RatePerMinute int
	Burst         int
}

// RateLimitEnabled reports whether verify requests are throttled.
func (c VerifyConfig) RateLimitEnabled() bool {
	return c.RatePerMinute > 0
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", getEnv("HOST", "0.0.0.0")),
			Port:           getEnv("SERVER_PORT", getEnv("PORT", "3000")),
			Env:            getEnv("SERVER_ENV", "development"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMemory)),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "keyauth"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "keyauth.db"),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "keyauth:"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Verify: VerifyConfig{
			RatePerMinute: getEnvAsInt("VERIFY_RATE_LIMIT", 60),
			Burst:         getEnvAsInt("VERIFY_RATE_BURST", 10),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return fmt.Errorf("server port is required")
	}
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverPostgres, StoreDriverSQLite, StoreDriverRedis:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == StoreDriverSQLite && strings.TrimSpace(c.SQLite.Path) == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
	}
	if c.Verify.RatePerMinute < 0 || c.Verify.Burst < 0 {
		return fmt.Errorf("verify rate limit must not be negative")
	}
	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("invalid TRUSTED_PROXIES entry %q", proxy)
			}
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
