package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverBolt     = "bolt"
)

// Queue drivers.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Bolt        BoltConfig
	JWT         JWTConfig
	Scheduler   SchedulerConfig
	Notifier    NotifierConfig
	Queue       QueueConfig
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
}

// StoreConfig selects the reminder document store and the adapter retry policy.
type StoreConfig struct {
	Driver          string
	RetryInitial    time.Duration
	RetryMaxElapsed time.Duration
	RetryMax        int
	CASAttempts     int
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

type BoltConfig struct {
	Path string
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type SchedulerConfig struct {
	Enabled        bool
	Interval       time.Duration
	Lookback       time.Duration
	Concurrency    int
	HealthInterval time.Duration
}

type NotifierConfig struct {
	WebhookURL     string
	WebhookToken   string
	WebhookTimeout time.Duration
}

type QueueConfig struct {
	Driver   string
	Capacity int
	Key      string
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
// and applies defaults so the engine can boot with an embedded store.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "followup"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "0.0.0.0"),
			Port:          getString("SERVER_PORT", "8080"),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:       getInt("SERVER_MAX_CONN", 0),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", false),
		},
		Store: StoreConfig{
			Driver:          getString("STORE_DRIVER", DriverBolt),
			RetryInitial:    getDuration("STORE_RETRY_INITIAL", 100*time.Millisecond),
			RetryMaxElapsed: getDuration("STORE_RETRY_MAX_ELAPSED", 5*time.Second),
			RetryMax:        getInt("STORE_RETRY_MAX", 4),
			CASAttempts:     getInt("STORE_CAS_ATTEMPTS", 5),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "followup"),
			User:            getString("DB_USER", "followup"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 2),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Bolt: BoltConfig{
			Path: getString("BOLTDB_PATH", "./data/reminders.db"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "followup"),
		},
		Scheduler: SchedulerConfig{
			Enabled:        getBool("SCHEDULER_ENABLED", true),
			Interval:       getDuration("SCHEDULER_INTERVAL", 30*time.Second),
			Lookback:       getDuration("SCHEDULER_LOOKBACK", 5*time.Minute),
			Concurrency:    getInt("SCHEDULER_CONCURRENCY", 8),
			HealthInterval: getDuration("HEALTH_CHECK_INTERVAL", 10*time.Second),
		},
		Notifier: NotifierConfig{
			WebhookURL:     os.Getenv("NOTIFY_WEBHOOK_URL"),
			WebhookToken:   os.Getenv("NOTIFY_WEBHOOK_TOKEN"),
			WebhookTimeout: getDuration("NOTIFY_WEBHOOK_TIMEOUT", 5*time.Second),
		},
		Queue: QueueConfig{
			Driver:   getString("QUEUE_DRIVER", QueueMemory),
			Capacity: getInt("QUEUE_CAPACITY", 1000),
			Key:      getString("QUEUE_KEY", "followup:notifications"),
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

	if err := cfg.Validate(); err != nil {
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

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverRedis, DriverBolt:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Queue.Driver {
	case QueueMemory, QueueRedis:
	default:
		return fmt.Errorf("unknown QUEUE_DRIVER %q", c.Queue.Driver)
	}
	if c.Scheduler.Interval < time.Second {
		return fmt.Errorf("SCHEDULER_INTERVAL must be at least 1s, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.Lookback <= 0 {
		return fmt.Errorf("SCHEDULER_LOOKBACK must be positive, got %s", c.Scheduler.Lookback)
	}
	if c.Scheduler.Concurrency <= 0 {
		return fmt.Errorf("SCHEDULER_CONCURRENCY must be positive, got %d", c.Scheduler.Concurrency)
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Store.Driver == DriverRedis || c.Queue.Driver == QueueRedis
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
