package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"partnerlink"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"partnerlink"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"partnerlink"`

	// JWT (tokens are issued by the external auth service; we only verify)
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAdminExpiry   time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`
	JWTPartnerExpiry time.Duration `env:"JWT_PARTNER_EXPIRY" envDefault:"12h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3200"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Click tracking
	ClickRateLimit        int           `env:"CLICK_RATE_LIMIT" envDefault:"30"`
	ClickRateWindow       time.Duration `env:"CLICK_RATE_WINDOW" envDefault:"1m"`
	ClickDedupWindow      time.Duration `env:"CLICK_DEDUP_WINDOW" envDefault:"30m"`
	AttributionWindow     time.Duration `env:"ATTRIBUTION_WINDOW" envDefault:"720h"`
	AttributionClaimTries int           `env:"ATTRIBUTION_CLAIM_TRIES" envDefault:"3"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure or nonsensical configuration that must
// not run in production. Set ALLOW_INSECURE_DEFAULTS=true to bypass the
// secret checks (local dev only).
func (c *Config) Validate() error {
	if c.ClickRateLimit <= 0 {
		return fmt.Errorf("CLICK_RATE_LIMIT must be positive")
	}
	if c.AttributionWindow <= 0 {
		return fmt.Errorf("ATTRIBUTION_WINDOW must be positive")
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
