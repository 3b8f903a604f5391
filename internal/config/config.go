// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	EnvDevelopment = "development"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Env  string
	Port int

	DBDriver    string
	DBPath      string
	DatabaseURL string

	JWTSecret string
	TokenTTL  time.Duration

	LogLevel  string
	LogFormat string

	// AppAdminEmails are promoted to APP_ADMIN when they register.
	AppAdminEmails []string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, which has the signature of
// os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := &Config{
		Env:          get("ENV", "production"),
		DBDriver:     strings.ToLower(get("DB_DRIVER", DriverSQLite)),
		DBPath:       get("DB_PATH", "./data/roomledger.db"),
		DatabaseURL:  get("DATABASE_URL", ""),
		JWTSecret:    get("JWT_SECRET", ""),
		LogLevel:     strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(get("LOG_FORMAT", "text")),
		SMTPHost:     get("SMTP_HOST", ""),
		SMTPUsername: get("SMTP_USERNAME", ""),
		SMTPPassword: get("SMTP_PASSWORD", ""),
		MailFrom:     get("MAIL_FROM", "noreply@roomledger.local"),
	}

	var errs []error

	port, err := strconv.Atoi(get("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be a valid TCP port, got %q", get("PORT", "")))
	}
	cfg.Port = port

	smtpPort, err := strconv.Atoi(get("SMTP_PORT", "587"))
	if err != nil || smtpPort <= 0 || smtpPort > 65535 {
		errs = append(errs, fmt.Errorf("SMTP_PORT must be a valid TCP port, got %q", get("SMTP_PORT", "")))
	}
	cfg.SMTPPort = smtpPort

	ttl, err := time.ParseDuration(get("TOKEN_TTL", "24h"))
	if err != nil || ttl <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be a positive duration, got %q", get("TOKEN_TTL", "")))
	}
	cfg.TokenTTL = ttl

	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when DB_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, cfg.DBDriver))
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", cfg.LogLevel))
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat))
	}

	if cfg.JWTSecret == "" {
		if cfg.IsDevelopment() {
			cfg.JWTSecret = "development-secret-do-not-use-in-production"
		} else {
			errs = append(errs, errors.New("JWT_SECRET is required outside ENV=development"))
		}
	}

	for _, email := range strings.Split(get("APP_ADMIN_EMAILS", ""), ",") {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			cfg.AppAdminEmails = append(cfg.AppAdminEmails, email)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// IsDevelopment reports whether ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
