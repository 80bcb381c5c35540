package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		// Given: a config file that only sets the storage
		path := writeConfig(t, "storage: sqlite\n")

		// When: loading it
		conf, err := Load(path)

		// Then: every other value falls back to its default
		require.NoError(t, err)
		assert.Equal(t, &Config{
			LogLevel:          "info",
			HTTPPort:          "9090",
			SocketPort:        "8080",
			TCPPort:           "7070",
			Storage:           StorageSQLite,
			Redis:             Redis{Host: "localhost", Port: "6379"},
			SQLiteStoragePath: "users.db",
			Hub:               Hub{MaxRooms: 256, MaxViolations: 5, OutboxSize: 256},
		}, conf)
		assert.Equal(t, "localhost:6379", conf.Redis.GetRedisAddr())
	})

	t.Run("file values", func(t *testing.T) {
		path := writeConfig(t, `
log-level: debug
tcp-port: "4000"
user-database: ~/users.json
hub:
  max-rooms: 10
  max-violations: 3
  outbox-size: 32
`)

		conf, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, "4000", conf.TCPPort)
		assert.Equal(t, "~/users.json", conf.UserDatabase)
		assert.Equal(t, Hub{MaxRooms: 10, MaxViolations: 3, OutboxSize: 32}, conf.Hub)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("TCP_PORT", "5000")
		path := writeConfig(t, "tcp-port: \"4000\"\n")

		conf, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "5000", conf.TCPPort)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))

		require.Error(t, err)
		assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yml")) })
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			HTTPPort:   "9090",
			SocketPort: "8080",
			TCPPort:    "7070",
			Storage:    StorageRedis,
			Redis:      Redis{Port: "6379"},
			Hub:        Hub{MaxRooms: 1, MaxViolations: 1, OutboxSize: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "privileged port", mutate: func(c *Config) { c.TCPPort = "80" }},
		{name: "port too large", mutate: func(c *Config) { c.HTTPPort = "70000" }},
		{name: "port not a number", mutate: func(c *Config) { c.SocketPort = "ws" }},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage = "postgres" }},
		{name: "zero rooms", mutate: func(c *Config) { c.Hub.MaxRooms = 0 }},
	}

	conf := valid()
	require.NoError(t, conf.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := valid()
			tt.mutate(&conf)

			require.ErrorIs(t, conf.Validate(), ErrInvalidConfig)
		})
	}
}
