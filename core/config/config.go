package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Session  SessionConfig
	Engine   EngineConfig
	Outbound OutboundConfig
	Reminder ReminderConfig
	Cache    CacheConfig
	AMQP     AMQPConfig
	Monitor  MonitorConfig
	Security SecurityConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	BaseUrl            string
	CorsAllowedOrigins []string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	LogQueries      bool
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

// SessionConfig selects the ChatSession backend: gorm | valkey | memory.
type SessionConfig struct {
	Backend string
}

type EngineConfig struct {
	Timeout time.Duration
}

type OutboundConfig struct {
	Timeout time.Duration
}

type ReminderConfig struct {
	Enabled   bool
	Timezone  string
	SendRate  float64 // messages per second per tenant, 0 disables pacing
	SendBurst int
	Audit     bool
}

type CacheConfig struct {
	TenantTTL time.Duration
}

type AMQPConfig struct {
	URL   string
	Queue string
}

type MonitorConfig struct {
	BufferSize int
	TTL        time.Duration
	Persist    bool
}

type SecurityConfig struct {
	SecretKey string
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	var basicAuth []string
	if v := os.Getenv("APP_BASIC_AUTH"); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000"}
	if v := os.Getenv("APP_CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.0.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              getEnvBool("APP_DEBUG", false),
		Environment:        getEnv("APP_ENV", "development"),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		CorsAllowedOrigins: corsOrigins,
	}
	if v := os.Getenv("APP_TRUSTED_PROXIES"); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "storages/azflow.db"),
		LogQueries:      getEnvBool("DB_LOG_QUERIES", false),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "azflow:"),
	}

	cfg := &Config{
		App:      appCfg,
		Database: dbCfg,
		Session:  SessionConfig{Backend: strings.ToLower(getEnv("SESSION_BACKEND", "gorm"))},
		Engine:   EngineConfig{Timeout: getEnvDuration("ENGINE_TIMEOUT", 20*time.Second)},
		Outbound: OutboundConfig{Timeout: getEnvDuration("OUTBOUND_TIMEOUT", 15*time.Second)},
		Reminder: ReminderConfig{
			Enabled:   getEnvBool("REMINDER_ENABLED", true),
			Timezone:  getEnv("REMINDER_TIMEZONE", "America/Sao_Paulo"),
			SendRate:  getEnvFloat("REMINDER_SEND_RATE", 1),
			SendBurst: getEnvInt("REMINDER_SEND_BURST", 5),
			Audit:     getEnvBool("REMINDER_AUDIT", true),
		},
		Cache: CacheConfig{TenantTTL: getEnvDuration("TENANT_CACHE_TTL", 30*time.Second)},
		AMQP:  AMQPConfig{URL: getEnv("AMQP_URL", ""), Queue: getEnv("AMQP_QUEUE", "azflow_metrics")},
		Monitor: MonitorConfig{
			BufferSize: getEnvInt("BOT_MONITOR_BUFFER", 200),
			TTL:        getEnvDuration("BOT_MONITOR_TTL", 0),
			Persist:    getEnvBool("METRICS_PERSIST", true),
		},
		Security: SecurityConfig{SecretKey: getEnv("APP_SECRET_KEY", "")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	Global = cfg
	return cfg, nil
}

// Validate rejects combinations the binary cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.Session.Backend {
	case "gorm", "memory":
	case "valkey":
		if !c.Database.ValkeyEnabled {
			return fmt.Errorf("SESSION_BACKEND=valkey requires VALKEY_ENABLED=true")
		}
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q", c.Session.Backend)
	}
	return nil
}
