// Package config reads the engine's configuration from the environment so
// main stays lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server needs at startup. Empty DatabaseURL,
// RedisURL, or KafkaBrokers mean the corresponding backend is not configured
// and the in-memory / log fallbacks are used.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	AuditTopic    string
	StrictAudit   bool
	JWTSigningKey string

	ShutdownTimeout time.Duration
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	addr := os.Getenv("CIVICFLOW_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "civicflow.audit"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; override in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, broker := range strings.Split(raw, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}

	return Config{
		Addr:            addr,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    brokers,
		AuditTopic:      auditTopic,
		StrictAudit:     os.Getenv("AUDIT_STRICT") == "true",
		JWTSigningKey:   jwtSigningKey,
		ShutdownTimeout: 10 * time.Second,
	}
}
