package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LEDGER_PORT.
const EnvPrefix = "LEDGER"

// Config holds application configuration
type Config struct {
	Port            int           `mapstructure:"port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	GinMode         string        `mapstructure:"gin_mode"`
	LogLevel        string        `mapstructure:"log_level"`
	Environment     string        `mapstructure:"environment"`
	OTLPEndpoint    string        `mapstructure:"otlp_endpoint"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	NATS    NATSConfig    `mapstructure:"nats"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// NATSConfig enables event publishing and the transfer command consumer.
// An empty URL disables both.
type NATSConfig struct {
	URL          string `mapstructure:"url"`
	EventSubject string `mapstructure:"event_subject"`
}

// RedisConfig enables the Redis stream notifier. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

// BreakerConfig tunes the circuit breakers around remote notifiers.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRequests uint32        `mapstructure:"max_requests"`
}

// New returns a viper instance with defaults and LEDGER_ env overrides applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile (optional) into v and decodes the result.
// Without a file, ./config.yaml and /etc/account-ledger/config.yaml are tried.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/account-ledger/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port %d", c.MetricsPort)
	}
	if c.Port == c.MetricsPort {
		return fmt.Errorf("port and metrics port must differ, both are %d", c.Port)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("metrics_port", 9090)
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("environment", "development")
	v.SetDefault("otlp_endpoint", "localhost:4317")
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.event_subject", "ledger.events")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "ledger.events")
	v.SetDefault("redis.max_len", 10000)

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.max_requests", 1)
}
