package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmcleod/keyguard/crypto"
)

// Load reads configuration from a YAML file, applies defaults and env
// overrides (KEYGUARD_SECTION_FIELD), and validates the result. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Variables use
// the format KEYGUARD_SECTION_FIELD and take precedence over the file.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("KEYGUARD_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("KEYGUARD_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("KEYGUARD_STORAGE_PATH"); val != "" {
		cfg.Storage.Path = val
	}
	if val := os.Getenv("KEYGUARD_SESSION_DURATION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Session.Duration = d
		}
	}
	if val := os.Getenv("KEYGUARD_GATE_TYPE"); val != "" {
		cfg.Gate.Type = val
	}
	if val := os.Getenv("KEYGUARD_CRYPTO_SCHEME"); val != "" {
		cfg.Crypto.Scheme = val
	}
	if val := os.Getenv("KEYGUARD_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("KEYGUARD_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
}

// Validate checks the configuration for invalid or unsafe values.
func Validate(cfg *Config) error {
	host, _, err := net.SplitHostPort(cfg.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("server.listen_address %q: %w", cfg.Server.ListenAddress, err)
	}
	if !isLoopbackHost(host) {
		return fmt.Errorf("server.listen_address %q: daemon only binds on loopback", cfg.Server.ListenAddress)
	}

	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendBBolt, BackendSQLite:
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for backend %q", cfg.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage.backend %q: must be one of memory, bbolt, sqlite", cfg.Storage.Backend)
	}

	if cfg.Session.Duration <= 0 {
		return fmt.Errorf("session.duration must be positive, got %s", cfg.Session.Duration)
	}

	switch cfg.Gate.Type {
	case GatePIN, GateWebAuthn:
	default:
		return fmt.Errorf("gate.type %q: must be one of pin, webauthn", cfg.Gate.Type)
	}
	if cfg.Gate.CeremonyTimeout <= 0 {
		return fmt.Errorf("gate.ceremony_timeout must be positive, got %s", cfg.Gate.CeremonyTimeout)
	}

	switch crypto.Scheme(cfg.Crypto.Scheme) {
	case crypto.SchemeAESGCM, crypto.SchemeChaCha20Poly1305:
	default:
		return fmt.Errorf("crypto.scheme %q: must be one of %s, %s",
			cfg.Crypto.Scheme, crypto.SchemeAESGCM, crypto.SchemeChaCha20Poly1305)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: must be one of debug, info, warn, error", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q: must be json or text", cfg.Logging.Format)
	}

	return nil
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultStoragePath(backend string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	name := "keyguard.db"
	if backend == BackendSQLite {
		name = "keyguard.sqlite"
	}
	return filepath.Join(dir, "keyguard", name)
}
