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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("", "development")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "chromem", cfg.Vector.Provider)
	assert.Equal(t, 4, cfg.Indexer.Workers)
	assert.Contains(t, cfg.Tools.ProtectedRoots, "/etc")
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9090
  cors_origins:
    - http://localhost:3000
logging:
  level: error
indexer:
  workers: 8
`)

	cfg, err := Load(path, "development")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Indexer.Workers)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_DB_DSN", "file:/data/hearth.db")

	path := writeConfig(t, `
database:
  dsn: ${TEST_DB_DSN}
embedder:
  host: ${MISSING_HOST:-http://fallback:11434}
`)

	cfg, err := Load(path, "development")
	require.NoError(t, err)

	assert.Equal(t, "file:/data/hearth.db", cfg.Database.DSN)
	assert.Equal(t, "http://fallback:11434", cfg.Embedder.Host)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	t.Setenv("HEARTH_PORT", "7777")
	t.Setenv("HEARTH_CORS_ORIGINS", "http://a.test,http://b.test")

	path := writeConfig(t, `
server:
  port: 9090
`)

	cfg, err := Load(path, "development")
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
}

func TestPresets(t *testing.T) {
	prod, err := Preset("production")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", prod.Server.Host)
	assert.Equal(t, "warn", prod.Logging.Level)

	testing_, err := Preset("testing")
	require.NoError(t, err)
	assert.Contains(t, testing_.Database.DSN, ":memory:")

	_, err = Preset("staging")
	assert.Error(t, err)
}

func TestValidationRejectsBadValues(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: loud
`)
	_, err := Load(path, "development")
	assert.Error(t, err)

	path = writeConfig(t, `
server:
  port: 99999
`)
	_, err = Load(path, "development")
	assert.Error(t, err)
}

func TestAddress(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8000}
	assert.Equal(t, "127.0.0.1:8000", c.Address())
}
