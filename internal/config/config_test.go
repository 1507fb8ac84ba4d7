package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 4*time.Hour, cfg.SessionTTL)
	require.Equal(t, 10*time.Minute, cfg.JanitorInterval)
	require.NotEmpty(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("DB_DSN", "postgres://test")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, "postgres://test", cfg.DSN)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}
