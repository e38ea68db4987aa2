// Package config holds the daemon configuration: YAML file, defaults, env
// overrides, validation.
package config

import (
	"time"

	"github.com/jmcleod/keyguard/crypto"
)

// Config is the root daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Session   SessionConfig   `yaml:"session"`
	Gate      GateConfig      `yaml:"gate"`
	Crypto    CryptoConfig    `yaml:"crypto"`
	Providers ProvidersConfig `yaml:"providers"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP listener. The daemon refuses to bind on
// anything but a loopback address: secrets travel over this socket.
type ServerConfig struct {
	ListenAddress string `yaml:"listen_address"`
	TLS           bool   `yaml:"tls"`
	CertFile      string `yaml:"cert_file"`
	KeyFile       string `yaml:"key_file"`
	Metrics       bool   `yaml:"metrics"`
}

// StorageConfig selects the durable backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, bbolt, sqlite
	Path    string `yaml:"path"`
}

// SessionConfig controls how long an unlocked secret stays available.
type SessionConfig struct {
	Duration time.Duration `yaml:"duration"`
}

// GateConfig selects and configures the credential gate.
type GateConfig struct {
	Type            string        `yaml:"type"` // pin, webauthn
	RPID            string        `yaml:"rp_id"`
	RPOrigin        string        `yaml:"rp_origin"`
	RPDisplayName   string        `yaml:"rp_display_name"`
	CeremonyTimeout time.Duration `yaml:"ceremony_timeout"`
}

// CryptoConfig selects the AEAD scheme for newly stored secrets.
type CryptoConfig struct {
	Scheme string `yaml:"scheme"`
}

// ProvidersConfig points at an optional provider directory file.
type ProvidersConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Backend names accepted by StorageConfig.
const (
	BackendMemory = "memory"
	BackendBBolt  = "bbolt"
	BackendSQLite = "sqlite"
)

// Gate types accepted by GateConfig.
const (
	GatePIN      = "pin"
	GateWebAuthn = "webauthn"
)

// ApplyDefaults fills in zero-valued fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8543"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendBBolt
	}
	if cfg.Storage.Path == "" && cfg.Storage.Backend != BackendMemory {
		cfg.Storage.Path = defaultStoragePath(cfg.Storage.Backend)
	}
	if cfg.Session.Duration == 0 {
		cfg.Session.Duration = 5 * time.Minute
	}
	if cfg.Gate.Type == "" {
		cfg.Gate.Type = GatePIN
	}
	if cfg.Gate.RPID == "" {
		cfg.Gate.RPID = "localhost"
	}
	if cfg.Gate.RPOrigin == "" {
		cfg.Gate.RPOrigin = "https://localhost"
	}
	if cfg.Gate.RPDisplayName == "" {
		cfg.Gate.RPDisplayName = "KeyGuard"
	}
	if cfg.Gate.CeremonyTimeout == 0 {
		cfg.Gate.CeremonyTimeout = 60 * time.Second
	}
	if cfg.Crypto.Scheme == "" {
		cfg.Crypto.Scheme = string(crypto.DefaultScheme)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
