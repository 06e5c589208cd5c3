package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backends accepted by STORE_BACKEND and FEED_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Store        StoreConfig
	Feed         FeedConfig
	Storage      StorageConfig
	Tickets      TicketConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	InstanceID            string
	RequestTimeoutSeconds int
	BodyLimitMB           int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32

	// ConnectAttempts bounds startup retries while the database comes up.
	ConnectAttempts int
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior. Service and Instance are
// attached to every entry.
type LoggerConfig struct {
	Level    string
	Format   string
	Service  string
	Instance string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// StoreConfig selects the ticket repository.
type StoreConfig struct {
	Backend           string
	CreateMaxAttempts int
}

// FeedConfig selects the change feed. The reconnect settings bound how
// quickly the live ticket list resubscribes after the feed fails.
type FeedConfig struct {
	Backend            string
	Channel            string
	ReconnectInitialMS int
	ReconnectMaxMS     int
}

// StorageConfig controls where uploaded assets go.
type StorageConfig struct {
	Dir               string
	PublicBaseURL     string
	MaxDimension      int
	MaxPixels         int
	UploadMaxAttempts int
	UploadBackoffMS   int
}

// TicketConfig holds ticket rules.
type TicketConfig struct {
	IDPrefix  string
	MaxPhotos int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	host, _ := os.Hostname()
	appName := getEnv("APP_NAME", "repair-desk")
	instanceID := getEnv("APP_INSTANCE_ID", host)

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			InstanceID:            instanceID,
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			BodyLimitMB:           getEnvAsInt("HTTP_BODY_LIMIT_MB", 16),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),

			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Format:   strings.ToLower(getEnv("LOG_FORMAT", "json")),
			Service:  appName,
			Instance: instanceID,
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60*12),
		},
		Store: StoreConfig{
			Backend:           strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
			CreateMaxAttempts: getEnvAsInt("STORE_CREATE_MAX_ATTEMPTS", 10),
		},
		Feed: FeedConfig{
			Backend:            strings.ToLower(getEnv("FEED_BACKEND", BackendMemory)),
			Channel:            getEnv("FEED_CHANNEL", "ticket_changes"),
			ReconnectInitialMS: getEnvAsInt("FEED_RECONNECT_INITIAL_MS", 1000),
			ReconnectMaxMS:     getEnvAsInt("FEED_RECONNECT_MAX_MS", 30000),
		},
		Storage: StorageConfig{
			Dir:               getEnv("STORAGE_DIR", "uploads"),
			PublicBaseURL:     getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/files"),
			MaxDimension:      getEnvAsInt("STORAGE_MAX_DIMENSION", 1280),
			MaxPixels:         getEnvAsInt("STORAGE_MAX_PIXELS", 40_000_000),
			UploadMaxAttempts: getEnvAsInt("STORAGE_UPLOAD_MAX_ATTEMPTS", 3),
			UploadBackoffMS:   getEnvAsInt("STORAGE_UPLOAD_BACKOFF_MS", 200),
		},
		Tickets: TicketConfig{
			IDPrefix:  getEnv("TICKET_ID_PREFIX", "PE"),
			MaxPhotos: getEnvAsInt("TICKET_MAX_PHOTOS", 5),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("STORE_BACKEND=postgres requires POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}

	switch c.Feed.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("FEED_BACKEND=postgres requires POSTGRES_DSN"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("FEED_BACKEND=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown FEED_BACKEND %q", c.Feed.Backend))
	}
	if c.Feed.Channel == "" {
		errs = append(errs, errors.New("FEED_CHANNEL must not be empty"))
	}

	if c.Tickets.IDPrefix == "" || strings.Contains(c.Tickets.IDPrefix, "-") {
		errs = append(errs, fmt.Errorf("invalid TICKET_ID_PREFIX %q", c.Tickets.IDPrefix))
	}
	for name, v := range map[string]int{
		"TICKET_MAX_PHOTOS":           c.Tickets.MaxPhotos,
		"STORE_CREATE_MAX_ATTEMPTS":   c.Store.CreateMaxAttempts,
		"STORAGE_MAX_DIMENSION":       c.Storage.MaxDimension,
		"STORAGE_MAX_PIXELS":          c.Storage.MaxPixels,
		"STORAGE_UPLOAD_MAX_ATTEMPTS": c.Storage.UploadMaxAttempts,
		"FEED_RECONNECT_INITIAL_MS":   c.Feed.ReconnectInitialMS,
		"FEED_RECONNECT_MAX_MS":       c.Feed.ReconnectMaxMS,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.Logger.Format))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must not be empty"))
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// ReconnectBackoff returns the first and the largest delay between stream
// resubscriptions.
func (f FeedConfig) ReconnectBackoff() (time.Duration, time.Duration) {
	return time.Duration(f.ReconnectInitialMS) * time.Millisecond, time.Duration(f.ReconnectMaxMS) * time.Millisecond
}

// UploadBackoff returns the first retry delay for asset uploads.
func (s StorageConfig) UploadBackoff() time.Duration {
	return time.Duration(s.UploadBackoffMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
