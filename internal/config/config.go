// Package config loads server configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr      string
	DSN       string
	RedisAddr string

	// ResetSecret signs password-reset tokens. Required.
	ResetSecret string

	// Pepper is appended to passwords before hashing. Overridable so
	// deployments do not share the default.
	Pepper string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	// AllowedOrigins for CORS and the websocket origin check.
	AllowedOrigins []string

	// SessionTTL is the validation-key lifetime.
	SessionTTL time.Duration

	// JanitorInterval controls how often expired keys, codes, reset
	// links and bans are swept.
	JanitorInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		Addr:            ":8080",
		RedisAddr:       "",
		Pepper:          "iis_garage_sale_prod_2024",
		SMTPHost:        "smtp.gmail.com",
		SMTPPort:        587,
		AllowedOrigins:  []string{"http://localhost:3000", "https://garage-sale.cz"},
		SessionTTL:      4 * time.Hour,
		JanitorInterval: 10 * time.Minute,
	}

	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.DSN = os.Getenv("DB_DSN")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.ResetSecret = os.Getenv("RESET_SECRET")

	if v := os.Getenv("PASSWORD_PEPPER"); v != "" {
		cfg.Pepper = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.SMTPPort = port
		}
	}
	cfg.SMTPUser = os.Getenv("SMTP_USER")
	cfg.SMTPPass = os.Getenv("SMTP_PASS")

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.AllowedOrigins = origins
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		}
	}
	if v := os.Getenv("JANITOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.JanitorInterval = d
		}
	}

	return cfg
}
