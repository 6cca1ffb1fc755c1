package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	Environment   string
	DatabaseURL   string
	JWTSigningKey string
	TxTimeout     time.Duration
	Redis         Redis
}

// Redis captures connection settings for the projection cache.
type Redis struct {
	URL      string
	PoolSize int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("RXLEDGER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	environment := os.Getenv("RXLEDGER_ENV")
	if environment == "" {
		environment = "development"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	txTimeout := 5 * time.Second
	if raw := os.Getenv("RXLEDGER_TX_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			txTimeout = d
		}
	}

	poolSize := 0
	if raw := os.Getenv("REDIS_POOL_SIZE"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			poolSize = n
		}
	}

	return Server{
		Addr:          addr,
		Environment:   environment,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSigningKey: jwtSigningKey,
		TxTimeout:     txTimeout,
		Redis: Redis{
			URL:      os.Getenv("REDIS_URL"),
			PoolSize: poolSize,
		},
	}
}
