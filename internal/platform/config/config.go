// Package config assembles the process configuration from environment
// variables so main stays lean. Every knob has a development default;
// production overrides via VITAE_* variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	id "vitae/pkg/domain"
	pstrings "vitae/pkg/platform/strings"
)

// Storage backends selectable via VITAE_STORAGE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Server  Server
	Storage Storage
	Redis   Redis
	Kafka   Kafka
	Reward  Reward
	Log     Log
}

// Server captures the HTTP listener and its guards.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	// OpsKeyHash is the bcrypt hash of the key guarding /metrics. Empty
	// leaves metrics unexposed.
	OpsKeyHash     string
	RequestTimeout time.Duration
}

// Storage selects and parameterizes the registry store backend.
type Storage struct {
	Backend     string
	LevelDBPath string
	PostgresURL string
}

// Redis configures the slow layer of the claim read cache. An empty URL
// means the in-process layer serves alone.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the event sink. No brokers means no sink.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Reward configures the payout program's treasury account.
type Reward struct {
	TreasuryAccount id.AccountID
}

// Log configures the process logger.
type Log struct {
	Level string
}

// FromEnv builds the configuration from the environment.
//
// Errors: only configuration that cannot be defaulted sensibly fails —
// an unparseable treasury account or an unknown storage backend.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:           envOr("VITAE_ADDR", ":8080"),
			JWTSigningKey:  envOr("VITAE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:      envOr("VITAE_JWT_ISSUER", "vitae"),
			JWTAudience:    envOr("VITAE_JWT_AUDIENCE", "vitae"),
			OpsKeyHash:     os.Getenv("VITAE_OPS_KEY_HASH"),
			RequestTimeout: durationOr("VITAE_REQUEST_TIMEOUT", 30*time.Second),
		},
		Storage: Storage{
			Backend:     envOr("VITAE_STORAGE_BACKEND", BackendMemory),
			LevelDBPath: envOr("VITAE_LEVELDB_PATH", "data/registry"),
			PostgresURL: os.Getenv("VITAE_POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("VITAE_REDIS_URL"),
			PoolSize:     intOr("VITAE_REDIS_POOL_SIZE", 10),
			MinIdleConns: intOr("VITAE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationOr("VITAE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationOr("VITAE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationOr("VITAE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitList(os.Getenv("VITAE_KAFKA_BROKERS")),
			Topic:   envOr("VITAE_KAFKA_TOPIC", "vitae.events"),
		},
		Log: Log{
			Level: envOr("VITAE_LOG_LEVEL", "info"),
		},
	}

	switch cfg.Storage.Backend {
	case BackendMemory, BackendLevelDB, BackendPostgres:
	default:
		return Config{}, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == BackendPostgres && cfg.Storage.PostgresURL == "" {
		return Config{}, fmt.Errorf("VITAE_POSTGRES_URL is required for the postgres backend")
	}

	// The treasury defaults to a fixed well-known account so development
	// runs without configuration; deployments must set their own.
	treasuryRaw := envOr("VITAE_TREASURY_ACCOUNT", "00000000-0000-0000-0000-000000000001")
	treasury, err := id.ParseAccountID(treasuryRaw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid VITAE_TREASURY_ACCOUNT: %w", err)
	}
	cfg.Reward.TreasuryAccount = treasury

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// splitList parses a comma-separated list, dropping blanks and repeats so a
// doubled broker address does not produce duplicate connections.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(v, ","))
}
