package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/tablekeeper/tablekeeper/pkg/config"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
database:
  url: postgres://localhost:5432/app?sslmode=disable
schema: db/schema.yaml
history:
  migrations_table: tk_migrations
  checksum_table: tk_schema
lock:
  enabled: true
  key: 42
`

func TestLoadConfig(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader(testConfigYAML))
		require.NoError(t, err)
		validateTestConfig(t, cfg)
	})

	t.Run("minimal", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader("schema: schema.yaml"))
		require.NoError(t, err)
		require.Equal(t, "schema.yaml", cfg.Schema)
		require.Empty(t, cfg.Database.URL)
		require.Empty(t, cfg.History.MigrationsTable)
		require.False(t, cfg.Lock.Enabled)
	})

	t.Run("error", func(t *testing.T) {
		// Invalid YAML
		cfg, err := LoadConfig(strings.NewReader("database: ["))
		require.Error(t, err)
		require.Nil(t, cfg)
		require.Contains(t, err.Error(), "failed to unmarshal project config")

		// Missing schema path
		cfg, err = LoadConfig(strings.NewReader("database:\n  url: postgres://localhost/app"))
		require.Error(t, err)
		require.Nil(t, cfg)
		require.Contains(t, err.Error(), "missing the schema file path")
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tablekeeper.yaml")
		require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))

		cfg, err := LoadConfigFile(path)
		require.NoError(t, err)
		validateTestConfig(t, cfg)
	})

	t.Run("error", func(t *testing.T) {
		cfg, err := LoadConfigFile("nonexistent.yaml")
		require.Error(t, err)
		require.Nil(t, cfg)
		require.Contains(t, err.Error(), "failed to open config file")
	})
}

func validateTestConfig(t *testing.T, cfg *Config) {
	t.Helper()
	require.NotNil(t, cfg)
	require.Equal(t, "postgres://localhost:5432/app?sslmode=disable", cfg.Database.URL)
	require.Equal(t, "db/schema.yaml", cfg.Schema)
	require.Equal(t, "tk_migrations", cfg.History.MigrationsTable)
	require.Equal(t, "tk_schema", cfg.History.ChecksumTable)
	require.True(t, cfg.Lock.Enabled)
	require.Equal(t, int64(42), cfg.Lock.Key)
}
