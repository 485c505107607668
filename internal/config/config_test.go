package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
server:
  port: "9090"
log:
  level: debug
redis:
  addr: localhost:6379
  ttl: 1h
quiz:
  duration: 2m
  topK: 5
  floor: 0.5
rooms:
  retention: 10m
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "2m", cfg.Quiz.Duration)
	require.Equal(t, 5, cfg.Quiz.TopK)
	require.InDelta(t, 0.5, cfg.Quiz.Floor, 1e-9)
	require.Equal(t, "10m", cfg.Rooms.Retention)
	require.Empty(t, cfg.Postgres.URL)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("QUIZ_DURATION", "90s")
	t.Setenv("POSTGRES_URL", "postgres://quiz@localhost/quiz")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	require.Equal(t, "7070", cfg.Server.Port)
	require.Equal(t, "90s", cfg.Quiz.Duration)
	require.Equal(t, "postgres://quiz@localhost/quiz", cfg.Postgres.URL)
	// untouched by the environment
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadEnvironmentOnly(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "server: [unclosed"))
	require.Error(t, err)

	t.Setenv("QUIZ_TOP_K", "many")
	_, err = Load(writeConfig(t, sample))
	require.Error(t, err)
}

func TestTTLDuration(t *testing.T) {
	require.Equal(t, time.Minute, TTLDuration("", time.Minute))
	require.Equal(t, 90*time.Second, TTLDuration("90s", time.Minute))
	require.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
}
