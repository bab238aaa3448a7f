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
	SessionBackendRedis = "redis"
	SessionBackendBolt  = "bolt"
)

// Config aggregates all runtime settings required by the gateway.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Session     SessionConfig
	Cookie      CookieConfig
	Backend     BackendConfig
	Login       LoginConfig
	Buffer      BufferConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxConn       int
	EnableMetrics bool
	// TrustForwardedFor takes client addresses from X-Forwarded-For. Enable only
	// behind a proxy that overwrites the header.
	TrustForwardedFor bool
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// SessionConfig selects where durable session records live.
type SessionConfig struct {
	Backend        string
	BoltPath       string
	TTL            time.Duration
	NotFoundLogout time.Duration
}

// CookieConfig controls the signed cookie that identifies a browser client.
type CookieConfig struct {
	Name   string
	Secret string
	Issuer string
	TTL    time.Duration
	Secure bool
}

// BackendConfig points at the REST backend that performs the login exchange.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type LoginConfig struct {
	RatePerSecond float64
	Burst         int
}

type BufferConfig struct {
	Path         string
	Retention    time.Duration
	SyncInterval time.Duration
	MaxRetry     int
	BatchSize    int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults so the gateway can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "billing-portal"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:              getString("SERVER_HOST", "0.0.0.0"),
			Port:              getString("SERVER_PORT", "8080"),
			ReadTimeout:       getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:           getInt("SERVER_MAX_CONN", 0),
			EnableMetrics:     getBool("SERVER_ENABLE_METRICS", true),
			TrustForwardedFor: getBool("TRUST_FORWARDED_FOR", false),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "portal"),
			User:            getString("DB_USER", "portal"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 2),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			Backend:        strings.ToLower(getString("SESSION_BACKEND", SessionBackendRedis)),
			BoltPath:       getString("SESSION_BOLT_PATH", "./data/sessions.db"),
			TTL:            getDuration("SESSION_TTL", 24*time.Hour),
			NotFoundLogout: getDuration("NOT_FOUND_LOGOUT_DELAY", 5*time.Second),
		},
		Cookie: CookieConfig{
			Name:   getString("CLIENT_COOKIE_NAME", "portal_client"),
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "billing-portal"),
			TTL:    getDuration("CLIENT_COOKIE_TTL", 30*24*time.Hour),
			Secure: getBool("CLIENT_COOKIE_SECURE", false),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(getString("BACKEND_BASE_URL", "http://localhost:3000/api"), "/"),
			Timeout: getDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		Login: LoginConfig{
			RatePerSecond: getFloat("LOGIN_RATE_PER_SECOND", 0.5),
			Burst:         getInt("LOGIN_RATE_BURST", 5),
		},
		Buffer: BufferConfig{
			Path:         getString("BOLTDB_PATH", "./data/buffer.db"),
			Retention:    getDuration("BUFFER_RETENTION", 24*time.Hour),
			SyncInterval: getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			MaxRetry:     getInt("MAX_RETRY_ATTEMPTS", 3),
			BatchSize:    getInt("BUFFER_BATCH_SIZE", 50),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Session.Backend {
	case SessionBackendRedis, SessionBackendBolt:
	default:
		return fmt.Errorf("SESSION_BACKEND must be %q or %q, got %q", SessionBackendRedis, SessionBackendBolt, c.Session.Backend)
	}
	if len(c.Cookie.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.Session.NotFoundLogout <= 0 {
		return fmt.Errorf("NOT_FOUND_LOGOUT_DELAY must be positive")
	}
	return nil
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
