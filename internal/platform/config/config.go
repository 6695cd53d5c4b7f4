// Package config collects everything the server reads from the environment
// so main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	// OpsSecretHash is the bcrypt hash of the operator secret accepted by
	// the token-issuance endpoint. Empty disables the endpoint.
	OpsSecretHash string

	Token    Token
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
}

// Token is the ledger's metadata at first boot. Name and symbol can be
// changed later through the admin API; decimals cannot.
type Token struct {
	Name     string
	Symbol   string
	Decimals uint8
	// AdminAddress is granted the default admin role on an empty role store.
	AdminAddress string
}

// Postgres configures the durable store. An empty DSN selects the in-memory
// stores, which is the mode integration tests and local development use.
type Postgres struct {
	DSN string
}

// Redis configures the shared freeze store. Empty URL disables it.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the audit event sink. Empty broker list disables it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:          envOr("CUSTODIA_ADDR", ":8080"),
		JWTSigningKey: envOr("CUSTODIA_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		OpsSecretHash: os.Getenv("CUSTODIA_OPS_SECRET_HASH"),
		Token: Token{
			Name:         envOr("CUSTODIA_TOKEN_NAME", "Custodia Token"),
			Symbol:       envOr("CUSTODIA_TOKEN_SYMBOL", "CSTD"),
			Decimals:     uint8(envInt("CUSTODIA_TOKEN_DECIMALS", 18)),
			AdminAddress: os.Getenv("CUSTODIA_ADMIN_ADDRESS"),
		},
		Postgres: Postgres{
			DSN: os.Getenv("CUSTODIA_POSTGRES_DSN"),
		},
		Redis: Redis{
			URL:          os.Getenv("CUSTODIA_REDIS_URL"),
			PoolSize:     envInt("CUSTODIA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CUSTODIA_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("CUSTODIA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CUSTODIA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CUSTODIA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitList(os.Getenv("CUSTODIA_KAFKA_BROKERS")),
			Topic:   envOr("CUSTODIA_KAFKA_TOPIC", "custodia.audit"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
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

func envDuration(key string, fallback time.Duration) time.Duration {
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

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
