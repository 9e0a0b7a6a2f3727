package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Backends for the ledger host.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Payment policies.
const (
	PolicyPayPerCall = "pay_per_call"
	PolicyPrepaid    = "prepaid"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Registry Registry
	Store    string
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Env             string
	LogLevel        string
	ShutdownTimeout time.Duration
}

func (s Server) IsDev() bool { return s.Env != "prod" }

// Registry configures the verified-identity registry itself.
type Registry struct {
	// AdminAddress, when set, initializes the registry at startup if it has
	// no authority yet.
	AdminAddress  common.Address
	PaymentPolicy string
	PaymentAmount *uint256.Int
	AssetAddress  common.Address
	Retention     uint64
	SweepInterval time.Duration
}

// RedisConfig holds go-redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig holds database/sql pool settings.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers          []string
	Topic            string
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultAsset is the payment asset address used when none is configured.
var DefaultAsset = common.HexToAddress("0x0000000000000000000000000000000000000a55")

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	return Load(os.Getenv)
}

// Load builds a Config from getenv and validates it.
func Load(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Server: Server{
			Addr:            p.str("VERIFIER_ADDR", ":8080"),
			Env:             p.str("VERIFIER_ENV", "dev"),
			LogLevel:        p.str("VERIFIER_LOG_LEVEL", "info"),
			ShutdownTimeout: p.duration("VERIFIER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Registry: Registry{
			AdminAddress:  p.address("VERIFIER_ADMIN_ADDRESS", common.Address{}),
			PaymentPolicy: p.str("VERIFIER_PAYMENT_POLICY", PolicyPrepaid),
			PaymentAmount: p.amount("VERIFIER_PAYMENT_AMOUNT", uint256.NewInt(300_000_000)),
			AssetAddress:  p.address("VERIFIER_ASSET_ADDRESS", DefaultAsset),
			Retention:     p.uint("VERIFIER_RETENTION_SECONDS", 5_184_000),
			SweepInterval: p.duration("VERIFIER_SWEEP_INTERVAL", 10*time.Minute),
		},
		Store: p.str("VERIFIER_STORE", StoreMemory),
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:          p.str("DATABASE_URL", ""),
			MaxOpenConns: p.int("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: p.int("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Kafka: KafkaConfig{
			Brokers:          p.list("KAFKA_BROKERS"),
			Topic:            p.str("KAFKA_EVENTS_TOPIC", "idverifier.events"),
			BreakerThreshold: p.int("KAFKA_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  p.duration("KAFKA_BREAKER_COOLDOWN", 30*time.Second),
		},
	}
	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Registry.PaymentPolicy {
	case PolicyPayPerCall, PolicyPrepaid:
	default:
		errs = append(errs, fmt.Errorf("VERIFIER_PAYMENT_POLICY: unknown policy %q", c.Registry.PaymentPolicy))
	}
	if c.Registry.PaymentAmount == nil || c.Registry.PaymentAmount.IsZero() {
		errs = append(errs, errors.New("VERIFIER_PAYMENT_AMOUNT: must be positive"))
	}
	if c.Registry.Retention == 0 {
		errs = append(errs, errors.New("VERIFIER_RETENTION_SECONDS: must be positive"))
	}
	if c.Registry.SweepInterval <= 0 {
		errs = append(errs, errors.New("VERIFIER_SWEEP_INTERVAL: must be positive"))
	}
	switch c.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL: required when VERIFIER_STORE=redis"))
		}
	case StorePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL: required when VERIFIER_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("VERIFIER_STORE: unknown backend %q", c.Store))
	}
	if c.Server.Env != "dev" && c.Server.Env != "prod" {
		errs = append(errs, fmt.Errorf("VERIFIER_ENV: must be dev or prod, got %q", c.Server.Env))
	}
	return errors.Join(errs...)
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) uint(key string, def uint64) uint64 {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) address(key string, def common.Address) common.Address {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	if !common.IsHexAddress(v) {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a hex address", key, v))
		return def
	}
	return common.HexToAddress(v)
}

func (p *parser) amount(key string, def *uint256.Int) *uint256.Int {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := uint256.FromDecimal(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) list(key string) []string {
	var out []string
	for _, part := range strings.Split(p.getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
