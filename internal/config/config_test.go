package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvDBPath, "/tmp/pets.db")
	t.Setenv(EnvServerPort, "9090")
	t.Setenv(EnvAPIKey, "secret")
	t.Setenv(EnvPageSize, "10")
	t.Setenv(EnvInterval, "90s")
	t.Setenv(EnvRetentionDays, "7")
	t.Setenv(EnvLogLevel, "WARN")

	cfg := FromEnv()
	require.Equal(t, "/tmp/pets.db", cfg.DBPath)
	require.Equal(t, 9090, cfg.ServerPort)
	require.Equal(t, "secret", cfg.APIKey)
	require.Equal(t, 10, cfg.PageSize)
	require.Equal(t, 90*time.Second, cfg.Interval)
	require.Equal(t, 7, cfg.RetentionDays)
	require.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
	require.Equal(t, ":9090", cfg.ListenAddr())
	require.NoError(t, cfg.Validate())
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("PETFEED_TEST_INT", "twelve")
	t.Setenv("PETFEED_TEST_DURATION", "15")
	t.Setenv("PETFEED_TEST_BOOL", "yes please")

	require.Equal(t, 3, GetEnvInt("PETFEED_TEST_INT", 3))
	require.Equal(t, 15*time.Minute, GetEnvDuration("PETFEED_TEST_DURATION", time.Second))
	require.True(t, GetEnvBool("PETFEED_TEST_BOOL", true))
	require.Equal(t, "fallback", GetEnvString("PETFEED_TEST_UNSET", "fallback"))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.PageSize = MaxPageSize + 1
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ServerPort = 0
	require.Error(t, cfg.Validate())
}
