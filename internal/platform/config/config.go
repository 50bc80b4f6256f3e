package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration. It is read once at startup and
// never re-read; changing the owner email requires a restart.
type Server struct {
	Addr          string
	JWTSigningKey string
	TokenTTL      time.Duration

	// OwnerEmail identifies the bootstrap Manager. The comparison happens at
	// decision time, so the value is injected rather than hardcoded.
	OwnerEmail string
	// DefaultRole is assigned to every non-owner registrant.
	DefaultRole string
	// RecordsCollection is the storage namespace (table name) for user records.
	RecordsCollection string

	// Optional backends; empty values select the in-memory implementations.
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	AuditTopic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:              getenv("PRIMEGATE_ADDR", ":8080"),
		JWTSigningKey:     getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:          time.Hour,
		OwnerEmail:        getenv("PROJECT_OWNER_EMAIL", "owner@primelabs.com"),
		DefaultRole:       getenv("DEFAULT_ROLE", "Doctor"),
		RecordsCollection: getenv("RECORDS_COLLECTION", "users"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		AuditTopic:        getenv("AUDIT_TOPIC", "primegate.audit"),
	}

	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil && parsed > 0 {
			cfg.TokenTTL = parsed
		}
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
