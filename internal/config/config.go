package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL connection settings for the postgres blob backend.
// URL, when set, takes precedence over the discrete components.
type DatabaseConfig struct {
	URL                string
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Timeouts bound every blocking call against the blob store.
type Timeouts struct {
	// ServerSelection bounds the liveness ping performed while dialing.
	ServerSelection time.Duration
	// Connect bounds establishing a network connection.
	Connect time.Duration
	// Socket bounds a single read, write or query once connected.
	Socket time.Duration
}

// RetryConfig describes how connection attempts are retried.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	// Multiplier > 1 switches from a fixed delay to exponential backoff.
	Multiplier float64
}

// StorageConfig selects and tunes the blob store backend.
type StorageConfig struct {
	Backend           string // "postgres", "minio" or "memory"
	Timeouts          Timeouts
	Retry             RetryConfig
	ReconnectInterval time.Duration
}

// LockConfig selects the single-writer guard used around replace.
type LockConfig struct {
	Backend string // "local" or "redis"
	Timeout time.Duration
}

// RedisConfig holds settings for the redis writer lock.
type RedisConfig struct {
	URL     string
	LockKey string
	LockTTL time.Duration
}

// RateLimitConfig throttles uploads per client IP. RequestsPerSecond <= 0 disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port           string
	Timezone       string
	LogLevel       string
	MaxUploadBytes int
	AllowOrigins   []string
	UploadLimit    RateLimitConfig
	Storage        StorageConfig
	Database       DatabaseConfig
	MinIO          MinIOConfig
	Lock           LockConfig
	Redis          RedisConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Port:           getEnv("PORT", "8080"),
		Timezone:       getEnv("APP_TIMEZONE", "UTC"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MaxUploadBytes: getEnvInt("MAX_UPLOAD_BYTES", 50*1024*1024),
		AllowOrigins:   getEnvList("ALLOW_ORIGINS", []string{"*"}),
		UploadLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("UPLOAD_RATE_LIMIT_RPS", 1),
			Burst:             getEnvInt("UPLOAD_RATE_LIMIT_BURST", 5),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "postgres")),
			Timeouts: Timeouts{
				ServerSelection: getEnvDuration("STORAGE_SERVER_SELECTION_TIMEOUT", 5*time.Second),
				Connect:         getEnvDuration("STORAGE_CONNECT_TIMEOUT", 10*time.Second),
				Socket:          getEnvDuration("STORAGE_SOCKET_TIMEOUT", 10*time.Second),
			},
			Retry: RetryConfig{
				MaxAttempts: getEnvInt("STORAGE_CONNECT_ATTEMPTS", 3),
				Delay:       getEnvDuration("STORAGE_RETRY_DELAY", 2*time.Second),
				Multiplier:  getEnvFloat("STORAGE_RETRY_MULTIPLIER", 1),
			},
			ReconnectInterval: getEnvDuration("STORAGE_RECONNECT_INTERVAL", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			Prefix:    getEnv("MINIO_PREFIX", "current/"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Lock: LockConfig{
			Backend: strings.ToLower(getEnv("LOCK_BACKEND", "local")),
			Timeout: getEnvDuration("LOCK_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			LockKey: getEnv("REDIS_LOCK_KEY", "pdfslot:replace"),
			LockTTL: getEnvDuration("REDIS_LOCK_TTL", time.Minute),
		},
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("2s", "150ms").
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d >= 0 {
			return d
		}
	}
	return def
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
