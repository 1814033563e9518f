package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFillsDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "data", c.DataDir)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 20*time.Minute, c.Simulation.DayLength)
	assert.Equal(t, RateLimitPolicy{Max: 10, Window: time.Second}, c.RateLimit.Transfer)
	assert.Equal(t, RateLimitPolicy{Max: 10, Window: time.Minute}, c.RateLimit.Command)
	assert.Equal(t, 1000, c.Ledger.JournalMaxPerActor)
	assert.Equal(t, 90, c.Ledger.RetentionDays)
	assert.Equal(t, 0.0, c.Ledger.OverdraftFloor)
	assert.Equal(t, "none", c.Relay.Backend)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 3, c.Queue.RetryLimit)
}

func TestOverdraftMovesLedgerFloor(t *testing.T) {
	c, err := Parse([]byte("environment: test\noverdraft:\n  enabled: true\n"))
	require.NoError(t, err)
	assert.Equal(t, -5000.0, c.Ledger.OverdraftFloor)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":            "environment: [",
		"bad backend":         "relay:\n  backend: carrier-pigeon\n",
		"bad log level":       "log:\n  level: loud\n",
		"warning below limit": "overdraft:\n  enabled: true\n  limit: -100\n  warning: -200\n",
		"queue without redis": "queue:\n  enabled: true\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o644))

	t.Setenv("SIMECON_DATA_DIR", "/var/simecon")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HTTP_PORT", "9191")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/simecon", c.DataDir)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 9191, c.Server.Port)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
