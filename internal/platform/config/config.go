// Package config builds the process configuration from environment variables
// so main stays lean. Every sub-config belongs to one collaborator; optional
// integrations (redis, postgres, kafka) are enabled by their URL being set.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "persona-gateway/pkg/platform/strings"
)

// Config is the full gateway configuration.
type Config struct {
	Server       ServerConfig
	Chain        ChainConfig
	Verification VerificationConfig
	Scoring      ScoringConfig
	Redis        RedisConfig
	Postgres     PostgresConfig
	Kafka        KafkaConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	JWTSigningKey   string
	ShutdownTimeout time.Duration
}

// ChainConfig locates the chain REST endpoint and the transaction gateway.
type ChainConfig struct {
	LCDURL          string
	SignerURL       string
	ContractAddress string
	Denom           string
}

// VerificationConfig locates the hosted verification bridge.
type VerificationConfig struct {
	BridgeURL    string
	AppID        string
	AppSecret    string
	PollInterval time.Duration
}

// ScoringConfig controls the model-backed scoring engine.
type ScoringConfig struct {
	APIKey   string
	Model    string
	Endpoint string
	CacheTTL time.Duration
}

// RedisConfig configures the optional score cache. Empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the optional audit database. Empty DSN falls back
// to the in-memory audit store.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig configures the optional audit event sink. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:            envStr("GATEWAY_ADDR", ":8080"),
			JWTSigningKey:   envStr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Chain: ChainConfig{
			LCDURL:          envStr("CHAIN_LCD_URL", "http://localhost:1317"),
			SignerURL:       envStr("CHAIN_SIGNER_URL", "http://localhost:9091"),
			ContractAddress: os.Getenv("CHAIN_CONTRACT_ADDRESS"),
			Denom:           envStr("CHAIN_DENOM", "uxion"),
		},
		Verification: VerificationConfig{
			BridgeURL:    os.Getenv("VERIFY_BRIDGE_URL"),
			AppID:        os.Getenv("VERIFY_APP_ID"),
			AppSecret:    os.Getenv("VERIFY_APP_SECRET"),
			PollInterval: envDuration("VERIFY_POLL_INTERVAL", 2*time.Second),
		},
		Scoring: ScoringConfig{
			APIKey:   os.Getenv("SCORING_API_KEY"),
			Model:    os.Getenv("SCORING_MODEL"),
			Endpoint: os.Getenv("SCORING_ENDPOINT"),
			CacheTTL: envDuration("SCORING_CACHE_TTL", time.Hour),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Kafka: KafkaConfig{
			Brokers:    envList("KAFKA_BROKERS"),
			AuditTopic: envStr("KAFKA_AUDIT_TOPIC", "persona.audit"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := platformstrings.DedupeAndTrim(strings.Split(v, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
