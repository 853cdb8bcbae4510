package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete HeartCare configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Profile determines which backing services are used
	Profile Profile `json:"profile"`

	// Auth settings
	Auth AuthConfig `json:"auth"`

	// Velocity limits assessment submissions per user
	Velocity VelocityConfig `json:"velocity"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// AsyncWorker enables the bus-driven scoring worker
	AsyncWorker bool `json:"asyncWorker"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// Profile selects a deployment shape.
type Profile string

const (
	// ProfileLocal runs on SQLite + in-memory cache + channels
	ProfileLocal Profile = "local"

	// ProfileCluster runs on PostgreSQL + Redis + NATS
	ProfileCluster Profile = "cluster"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// AuthConfig holds token settings.
type AuthConfig struct {
	JWTSecret  string        `json:"-"`
	Issuer     string        `json:"issuer"`
	Expiration time.Duration `json:"expiration"`

	// OperatorEmails are granted the operator role at signup and on startup.
	OperatorEmails []string `json:"operatorEmails"`
}

// VelocityConfig bounds how many assessments a user may submit per window.
type VelocityConfig struct {
	MaxSubmissions int `json:"maxSubmissions"` // <= 0 disables the limit
	WindowSecs     int `json:"windowSecs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// DevJWTSecret is used when no secret is configured. Never use it in production.
const DevJWTSecret = "heartcare-dev-secret-change-me"

// DefaultConfig returns a default configuration for the local profile.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Profile: ProfileLocal,
		Auth: AuthConfig{
			Issuer:     "heartcare",
			Expiration: 8 * 24 * time.Hour,
		},
		Velocity: VelocityConfig{
			MaxSubmissions: 30,
			WindowSecs:     3600,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./heartcare.db",
		},
		Cache: CacheConfig{
			Type:          "memory",
			LocalMaxSize:  10000,
			LocalTTL:      5 * time.Minute,
			AssessmentTTL: 10 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "heartcare",
		},
	}
}

// ClusterConfig returns a configuration for the cluster profile.
func ClusterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Profile = ProfileCluster
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "heartcare",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		AssessmentTTL:  10 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.AsyncWorker = true
	cfg.Tracing.Enabled = true
	return cfg
}

// LoadConfig picks the profile from HEARTCARE_PROFILE and applies env overrides.
func LoadConfig(lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	if v, ok := lookup("HEARTCARE_PROFILE"); ok && Profile(v) == ProfileCluster {
		cfg = ClusterConfig()
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with HEARTCARE_* variables.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("HEARTCARE_HOST", &cfg.Server.Host)
	str("HEARTCARE_JWT_SECRET", &cfg.Auth.JWTSecret)
	str("HEARTCARE_DB_DRIVER", &cfg.Repository.Driver)
	str("HEARTCARE_SQLITE_PATH", &cfg.Repository.SQLitePath)
	str("HEARTCARE_POSTGRES_HOST", &cfg.Repository.PostgresHost)
	str("HEARTCARE_POSTGRES_USER", &cfg.Repository.PostgresUser)
	str("HEARTCARE_POSTGRES_PASSWORD", &cfg.Repository.PostgresPassword)
	str("HEARTCARE_POSTGRES_DB", &cfg.Repository.PostgresDB)
	str("HEARTCARE_POSTGRES_SSLMODE", &cfg.Repository.PostgresSSLMode)
	str("HEARTCARE_CACHE", &cfg.Cache.Type)
	str("HEARTCARE_REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("HEARTCARE_REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	str("HEARTCARE_EVENTBUS", &cfg.EventBus.Type)
	str("HEARTCARE_NATS_URL", &cfg.EventBus.NATSUrl)
	str("HEARTCARE_NATS_TOKEN", &cfg.EventBus.NATSToken)
	str("HEARTCARE_LOG_LEVEL", &cfg.Logging.Level)

	if v, ok := lookup("HEARTCARE_OPERATOR_EMAILS"); ok && v != "" {
		cfg.Auth.OperatorEmails = nil
		for _, email := range strings.Split(v, ",") {
			if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
				cfg.Auth.OperatorEmails = append(cfg.Auth.OperatorEmails, email)
			}
		}
	}

	for key, dst := range map[string]*int{
		"HEARTCARE_PORT":            &cfg.Server.Port,
		"HEARTCARE_POSTGRES_PORT":   &cfg.Repository.PostgresPort,
		"HEARTCARE_REDIS_DB":        &cfg.Cache.RedisDB,
		"HEARTCARE_VELOCITY_MAX":    &cfg.Velocity.MaxSubmissions,
		"HEARTCARE_VELOCITY_WINDOW": &cfg.Velocity.WindowSecs,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if err := flag("HEARTCARE_ASYNC_WORKER", &cfg.AsyncWorker); err != nil {
		return err
	}
	if err := flag("HEARTCARE_TRACING", &cfg.Tracing.Enabled); err != nil {
		return err
	}

	debug := false
	if err := flag("HEARTCARE_DEBUG", &debug); err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	if v, ok := lookup("HEARTCARE_TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid HEARTCARE_TOKEN_TTL: %w", err)
		}
		cfg.Auth.Expiration = d
	}

	return nil
}
