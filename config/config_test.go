package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8543", cfg.Server.ListenAddress)
	assert.Equal(t, BackendBBolt, cfg.Storage.Backend)
	assert.NotEmpty(t, cfg.Storage.Path)
	assert.Equal(t, 5*time.Minute, cfg.Session.Duration)
	assert.Equal(t, GatePIN, cfg.Gate.Type)
	assert.Equal(t, 60*time.Second, cfg.Gate.CeremonyTimeout)
	assert.Equal(t, "aes256gcm", cfg.Crypto.Scheme)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_address: "localhost:9000"
storage:
  backend: sqlite
  path: /tmp/kg.sqlite
session:
  duration: 90s
crypto:
  scheme: chacha20poly1305
logging:
  format: text
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", cfg.Server.ListenAddress)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 90*time.Second, cfg.Session.Duration)
	assert.Equal(t, "chacha20poly1305", cfg.Crypto.Scheme)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KEYGUARD_STORAGE_BACKEND", "memory")
	t.Setenv("KEYGUARD_SESSION_DURATION", "30s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 30*time.Second, cfg.Session.Duration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"NonLoopbackListen", func(c *Config) { c.Server.ListenAddress = "0.0.0.0:8543" }},
		{"BadListen", func(c *Config) { c.Server.ListenAddress = "nonsense" }},
		{"UnknownBackend", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"MissingPath", func(c *Config) { c.Storage.Backend = BackendBBolt; c.Storage.Path = "" }},
		{"ZeroDuration", func(c *Config) { c.Session.Duration = -1 }},
		{"UnknownGate", func(c *Config) { c.Gate.Type = "retina" }},
		{"UnknownScheme", func(c *Config) { c.Crypto.Scheme = "rot13" }},
		{"BadLogLevel", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	assert.NoError(t, Validate(Default()))
}
