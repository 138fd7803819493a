// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	AdapterMemory   = "memory"
	AdapterLevelDB  = "leveldb"
	AdapterPostgres = "postgres"
	AdapterKafka    = "kafka"
	AdapterRedis    = "redis"
)

// Config is the full ledgerd configuration.
type Config struct {
	Server     Server
	Log        Log
	Adapters   Adapters
	Redis      RedisConfig
	Kafka      KafkaConfig
	Postgres   PostgresConfig
	LevelDB    LevelDBConfig
	Dispatcher DispatcherConfig
}

// DevCapabilityKey is the signing key used when none is configured.
const DevCapabilityKey = "dev-capability-key-change-me"

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"CROSSLEDGER_ADDR"             envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"CROSSLEDGER_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	// CapabilityKey signs capability tokens handed to callers. The default is
	// DevCapabilityKey and must be replaced outside local development.
	CapabilityKey string `env:"CROSSLEDGER_CAPABILITY_KEY" envDefault:"dev-capability-key-change-me"`
	// RateLimit caps v1 requests per caller per RateWindow; 0 disables it.
	RateLimit  int           `env:"CROSSLEDGER_RATE_LIMIT"  envDefault:"600"`
	RateWindow time.Duration `env:"CROSSLEDGER_RATE_WINDOW" envDefault:"1m"`
}

type Log struct {
	Level  string `env:"CROSSLEDGER_LOG_LEVEL"  envDefault:"info"`
	Format string `env:"CROSSLEDGER_LOG_FORMAT" envDefault:"json"`
}

// Adapters selects the implementation behind each external port.
type Adapters struct {
	Submitter string `env:"CROSSLEDGER_SUBMITTER" envDefault:"memory"`
	Notary    string `env:"CROSSLEDGER_NOTARY"    envDefault:"memory"`
	Documents string `env:"CROSSLEDGER_DOCUMENTS" envDefault:"memory"`
	Tokens    string `env:"CROSSLEDGER_TOKENS"    envDefault:"memory"`
}

// RedisConfig configures the Redis client used by the document store and
// token minter.
type RedisConfig struct {
	URL          string        `env:"CROSSLEDGER_REDIS_URL"`
	PoolSize     int           `env:"CROSSLEDGER_REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"CROSSLEDGER_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"CROSSLEDGER_REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"CROSSLEDGER_REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"CROSSLEDGER_REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
	KeyPrefix    string        `env:"CROSSLEDGER_REDIS_KEY_PREFIX"     envDefault:"crossledger"`
}

type KafkaConfig struct {
	Brokers           []string `env:"CROSSLEDGER_KAFKA_BROKERS"            envSeparator:","`
	TopicPrefix       string   `env:"CROSSLEDGER_KAFKA_TOPIC_PREFIX"       envDefault:"crossledger"`
	ReplicationFactor int16    `env:"CROSSLEDGER_KAFKA_REPLICATION_FACTOR" envDefault:"1"`
}

type PostgresConfig struct {
	DSN      string `env:"CROSSLEDGER_POSTGRES_DSN"`
	MaxConns int32  `env:"CROSSLEDGER_POSTGRES_MAX_CONNS" envDefault:"8"`
}

type LevelDBConfig struct {
	Path string `env:"CROSSLEDGER_LEVELDB_PATH" envDefault:"data/journal"`
}

type DispatcherConfig struct {
	Interval  time.Duration `env:"CROSSLEDGER_DISPATCH_INTERVAL"  envDefault:"500ms"`
	BatchSize int           `env:"CROSSLEDGER_DISPATCH_BATCH"     envDefault:"64"`
	// FailureThreshold consecutive failures open the submission breaker.
	FailureThreshold int           `env:"CROSSLEDGER_DISPATCH_FAILURE_THRESHOLD" envDefault:"5"`
	Cooldown         time.Duration `env:"CROSSLEDGER_DISPATCH_COOLDOWN"          envDefault:"10s"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks adapter choices and the settings they depend on.
func (c Config) Validate() error {
	checks := []struct {
		port    string
		value   string
		allowed []string
	}{
		{"submitter", c.Adapters.Submitter, []string{AdapterMemory, AdapterLevelDB, AdapterPostgres}},
		{"notary", c.Adapters.Notary, []string{AdapterMemory, AdapterKafka, AdapterPostgres}},
		{"documents", c.Adapters.Documents, []string{AdapterMemory, AdapterRedis}},
		{"tokens", c.Adapters.Tokens, []string{AdapterMemory, AdapterRedis}},
	}
	for _, chk := range checks {
		if !slices.Contains(chk.allowed, chk.value) {
			return fmt.Errorf("%s adapter %q: must be one of %v", chk.port, chk.value, chk.allowed)
		}
	}
	if (c.Adapters.Submitter == AdapterPostgres || c.Adapters.Notary == AdapterPostgres) && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres adapters require CROSSLEDGER_POSTGRES_DSN")
	}
	if c.Adapters.Notary == AdapterKafka && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka notary requires CROSSLEDGER_KAFKA_BROKERS")
	}
	if (c.Adapters.Documents == AdapterRedis || c.Adapters.Tokens == AdapterRedis) && c.Redis.URL == "" {
		return fmt.Errorf("redis adapters require CROSSLEDGER_REDIS_URL")
	}
	if strings.TrimSpace(c.Server.CapabilityKey) == "" {
		return fmt.Errorf("capability key must not be empty")
	}
	if c.Dispatcher.BatchSize <= 0 {
		return fmt.Errorf("dispatch batch size must be positive")
	}
	if c.Dispatcher.Interval <= 0 {
		return fmt.Errorf("dispatch interval must be positive")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow <= 0 {
		return fmt.Errorf("rate window must be positive when a rate limit is set")
	}
	return nil
}
