// Package config loads service configuration from defaults, an optional
// YAML file and GREENESTATE_* environment variables, in that order of
// precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/holdings"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/lock"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/redis"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "GREENESTATE"

// Config is the complete service configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    redis.Config   `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Holdings HoldingsConfig `mapstructure:"holdings"`
	Lock     LockConfig     `mapstructure:"lock"`
	Quotes   QuotesConfig   `mapstructure:"quotes"`
	Events   EventsConfig   `mapstructure:"events"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures zap
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// DatabaseConfig configures the gorm connection used by the ledger store
// and the SQL holdings backend.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
}

// JWTConfig configures bearer token verification
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// LedgerConfig configures allocation policy and the coordinator
type LedgerConfig struct {
	CreditMode        string        `mapstructure:"credit_mode"`
	UndersupplyPolicy string        `mapstructure:"undersupply_policy"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	PersistTimeout    time.Duration `mapstructure:"persist_timeout"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	ReconcileAfter    time.Duration `mapstructure:"reconcile_after"`
	ReconcileBatch    int           `mapstructure:"reconcile_batch"`
}

// Policy parses the allocation policy
func (l LedgerConfig) Policy() (ledger.Policy, error) {
	credit, err := ledger.ParseCreditMode(l.CreditMode)
	if err != nil {
		return ledger.Policy{}, err
	}
	under, err := ledger.ParseUndersupplyPolicy(l.UndersupplyPolicy)
	if err != nil {
		return ledger.Policy{}, err
	}
	return ledger.Policy{Credit: credit, Undersupply: under}, nil
}

// HoldingsConfig selects the holdings index backend
type HoldingsConfig struct {
	Backend   string        `mapstructure:"backend"` // redis or sql
	MarkerTTL time.Duration `mapstructure:"marker_ttl"`
}

// LockConfig selects the per-asset lock backend
type LockConfig struct {
	Backend string        `mapstructure:"backend"` // local or redis
	Expiry  time.Duration `mapstructure:"expiry"`
	Tries   int           `mapstructure:"tries"`
}

// QuotesConfig configures the ETH/INR price quote
type QuotesConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// EventsConfig configures ledger event publishers. Each publisher is
// enabled by setting its destination.
type EventsConfig struct {
	Topic        string   `mapstructure:"topic"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	RedisStream  bool     `mapstructure:"redis_stream"`
	StreamMaxLen int64    `mapstructure:"stream_max_len"`
	WebhookURL   string   `mapstructure:"webhook_url"`
}

// TracingConfig configures OpenTelemetry
type TracingConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	StdoutMetrics bool    `mapstructure:"stdout_metrics"`
	ServiceName   string  `mapstructure:"service_name"`
	SampleRatio   float64 `mapstructure:"sample_ratio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 20*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=greenestate port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)

	rc := redis.DefaultConfig()
	v.SetDefault("redis.addr", rc.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", rc.PoolSize)
	v.SetDefault("redis.min_idle_conns", rc.MinIdleConns)
	v.SetDefault("redis.conn_max_lifetime", rc.ConnMaxLifetime)
	v.SetDefault("redis.conn_max_idle_time", rc.ConnMaxIdleTime)
	v.SetDefault("redis.pool_timeout", rc.PoolTimeout)
	v.SetDefault("redis.max_retries", rc.MaxRetries)
	v.SetDefault("redis.min_retry_backoff", rc.MinRetryBackoff)
	v.SetDefault("redis.max_retry_backoff", rc.MaxRetryBackoff)
	v.SetDefault("redis.dial_timeout", rc.DialTimeout)
	v.SetDefault("redis.read_timeout", rc.ReadTimeout)
	v.SetDefault("redis.write_timeout", rc.WriteTimeout)
	v.SetDefault("redis.enable_cluster", false)
	v.SetDefault("redis.cluster_addrs", []string{})
	v.SetDefault("redis.enable_sentinel", false)
	v.SetDefault("redis.sentinel_addrs", []string{})
	v.SetDefault("redis.sentinel_password", "")
	v.SetDefault("redis.master_name", "")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")

	v.SetDefault("ledger.credit_mode", string(ledger.CreditAutoList))
	v.SetDefault("ledger.undersupply_policy", string(ledger.UndersupplyReject))
	v.SetDefault("ledger.max_attempts", 5)
	v.SetDefault("ledger.retry_backoff", 10*time.Millisecond)
	v.SetDefault("ledger.persist_timeout", 10*time.Second)
	v.SetDefault("ledger.reconcile_interval", 30*time.Second)
	v.SetDefault("ledger.reconcile_after", time.Minute)
	v.SetDefault("ledger.reconcile_batch", 100)

	v.SetDefault("holdings.backend", holdings.BackendRedis)
	v.SetDefault("holdings.marker_ttl", 30*24*time.Hour)

	v.SetDefault("lock.backend", lock.BackendLocal)
	v.SetDefault("lock.expiry", 10*time.Second)
	v.SetDefault("lock.tries", 64)

	v.SetDefault("quotes.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("quotes.api_key", "")
	v.SetDefault("quotes.timeout", 5*time.Second)
	v.SetDefault("quotes.cache_ttl", time.Minute)

	v.SetDefault("events.topic", "greenestate.ledger.events")
	v.SetDefault("events.kafka_brokers", []string{})
	v.SetDefault("events.redis_stream", false)
	v.SetDefault("events.stream_max_len", 100000)
	v.SetDefault("events.webhook_url", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.stdout_metrics", false)
	v.SetDefault("tracing.service_name", "greenestate")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// LoadConfig loads configuration. Files in paths are merged in order; with
// no paths, config.yaml is looked up in ., ./configs and /etc/greenestate
// and may be absent.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(paths) > 0 {
		for _, path := range paths {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/greenestate")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read configuration file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that have no safe fallback
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if _, err := c.Ledger.Policy(); err != nil {
		return err
	}
	switch c.Holdings.Backend {
	case holdings.BackendRedis, holdings.BackendSQL:
	default:
		return fmt.Errorf("holdings.backend must be %s or %s, got %q", holdings.BackendRedis, holdings.BackendSQL, c.Holdings.Backend)
	}
	switch c.Lock.Backend {
	case lock.BackendLocal, lock.BackendRedis:
	default:
		return fmt.Errorf("lock.backend must be %s or %s, got %q", lock.BackendLocal, lock.BackendRedis, c.Lock.Backend)
	}
	if c.Ledger.MaxAttempts <= 0 {
		return fmt.Errorf("ledger.max_attempts must be positive, got %d", c.Ledger.MaxAttempts)
	}
	return nil
}

// NeedsRedis reports whether any configured component uses Redis
func (c *Config) NeedsRedis() bool {
	return c.Holdings.Backend == holdings.BackendRedis ||
		c.Lock.Backend == lock.BackendRedis ||
		c.Events.RedisStream ||
		c.Quotes.CacheTTL > 0
}
