// Package wfconfig loads runtime configuration: a YAML file plus
// environment overrides via viper, defaults set up front, then a
// validation pass over the result.
package wfconfig

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration object, unmarshaled from config.yaml
// plus bound environment variables.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Store         StoreConfig         `mapstructure:"store"`
	Progress      ProgressConfig      `mapstructure:"progress"`
	Execution     ExecutionConfig     `mapstructure:"execution"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig holds an address for a health/metrics server; nothing in
// this module starts one. The executor itself exposes no RPC surface.
type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

// StoreConfig selects and configures one of the three statestore adapters.
type StoreConfig struct {
	Backend  string              `mapstructure:"backend"` // "memory", "redis", "postgres"
	Redis    RedisStoreConfig    `mapstructure:"redis"`
	Postgres PostgresStoreConfig `mapstructure:"postgres"`
}

type RedisStoreConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type PostgresStoreConfig struct {
	URL string `mapstructure:"url"`
}

// ProgressConfig selects whether lifecycle events are also forwarded to
// AMQP, on top of the always-on in-memory sink.
type ProgressConfig struct {
	AMQP AMQPProgressConfig `mapstructure:"amqp"`
}

type AMQPProgressConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

type ExecutionConfig struct {
	MaxParallelSteps int           `mapstructure:"max_parallel_steps"`
	DefaultTimeout   time.Duration `mapstructure:"default_timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
}

type ObservabilityConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
	Environment  string `mapstructure:"environment"`
}

// Load reads config.yaml (if present) from ".", "./config" and
// "/etc/dagflow", overlays defaults and environment bindings, and
// validates the result. If explicitPath is non-empty, it is read instead
// of the default search path.
func Load(explicitPath ...string) (*Config, error) {
	if len(explicitPath) > 0 && explicitPath[0] != "" {
		viper.SetConfigFile(explicitPath[0])
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/dagflow")
	}

	setDefaults()
	bindEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "dagflow")
	viper.SetDefault("app.version", "0.1.0")
	viper.SetDefault("app.environment", "development")

	viper.SetDefault("http.address", ":8080")

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.redis.db", 0)
	viper.SetDefault("store.redis.ttl", "24h")

	viper.SetDefault("progress.amqp.enabled", false)
	viper.SetDefault("progress.amqp.exchange", "dagflow.progress")
	viper.SetDefault("progress.amqp.routing_key", "")

	viper.SetDefault("execution.max_parallel_steps", 5)
	viper.SetDefault("execution.default_timeout", "30s")
	viper.SetDefault("execution.max_attempts", 3)

	viper.SetDefault("observability.otlp_endpoint", "http://localhost:4317")
	viper.SetDefault("observability.service_name", "dagflow")
	viper.SetDefault("observability.environment", "development")
}

func bindEnvVars() {
	viper.BindEnv("app.environment", "DAGFLOW_ENV")

	viper.BindEnv("http.address", "HTTP_ADDR")

	viper.BindEnv("store.backend", "STORE_BACKEND")
	viper.BindEnv("store.redis.addr", "REDIS_ADDR")
	viper.BindEnv("store.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("store.redis.db", "REDIS_DB")
	viper.BindEnv("store.postgres.url", "POSTGRES_URL")

	viper.BindEnv("progress.amqp.enabled", "AMQP_PROGRESS_ENABLED")
	viper.BindEnv("progress.amqp.url", "AMQP_URL")

	viper.BindEnv("execution.max_parallel_steps", "MAX_PARALLEL_STEPS")
	viper.BindEnv("execution.default_timeout", "STEP_DEFAULT_TIMEOUT")
	viper.BindEnv("execution.max_attempts", "STEP_MAX_ATTEMPTS")

	viper.BindEnv("observability.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	viper.BindEnv("observability.service_name", "OTEL_SERVICE_NAME")
}

func validate(cfg *Config) error {
	switch cfg.Store.Backend {
	case "memory":
	case "redis":
		if cfg.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required when store.backend is redis")
		}
	case "postgres":
		if cfg.Store.Postgres.URL == "" {
			return fmt.Errorf("store.postgres.url is required when store.backend is postgres")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", cfg.Store.Backend)
	}

	if cfg.Execution.MaxParallelSteps <= 0 {
		return fmt.Errorf("execution.max_parallel_steps must be greater than 0")
	}
	if cfg.Progress.AMQP.Enabled && cfg.Progress.AMQP.URL == "" {
		return fmt.Errorf("progress.amqp.url is required when progress.amqp.enabled is true")
	}

	return nil
}
