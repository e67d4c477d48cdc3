package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 3, cfg.Catalog.MaxDepth)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, "Authorization", cfg.DocServer.JWTHeader)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"PORT":                   "9000",
		"DATABASE_URL":           "file:templates.db",
		"DOCSERVER_URL":          "https://docs.example.com/",
		"DOCSERVER_JWT_SECRET":   "s3cret",
		"FILL_TTL":               "1m",
		"LOG_LEVEL":              "",
		"UNIDOC_LICENSE_API_KEY": "metered-key",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "file:templates.db", cfg.Database.URL)
	assert.Equal(t, "https://docs.example.com", cfg.DocServerURL())
	assert.Equal(t, "s3cret", cfg.DocServer.JWTSecret)
	assert.Equal(t, time.Minute, cfg.Fill.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "metered-key", cfg.Docx.LicenseKey)
}

func TestApplyEnv_BadValues(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{"PORT": "http", "FILL_TTL": "soon"}))
	require.Error(t, err)
	assert.ErrorContains(t, err, "PORT")
	assert.ErrorContains(t, err, "FILL_TTL")
}

func TestLoad_FileThenEnvThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7000"
  public_url: http://odoo.local:7000
docserver:
  url: http://docs.local
catalog:
  max_depth: 2
session:
  idle_timeout: 5m
`), 0o600))

	t.Setenv("DATABASE_URL", "file:from-env.db")
	t.Setenv("PORT", "")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--max-depth=1", "--log-level=debug"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "http://odoo.local:7000", cfg.PublicURL())
	assert.Equal(t, "file:from-env.db", cfg.Database.URL)
	assert.Equal(t, 1, cfg.Catalog.MaxDepth)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Fill.TTL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DocServer.URL = "docs.local"
	cfg.Catalog.MaxDepth = -1
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "docserver.url")
	assert.ErrorContains(t, err, "server.public_url is required")
	assert.ErrorContains(t, err, "catalog.max_depth")
	assert.ErrorContains(t, err, "log.level")
}

func TestDefaultYAMLIsACopy(t *testing.T) {
	b := DefaultYAML()
	b[0] = 'X'
	assert.NotEqual(t, b[0], DefaultYAML()[0])
}
