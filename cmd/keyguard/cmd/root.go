package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/keyguard/config"
	"github.com/jmcleod/keyguard/crypto"
	"github.com/jmcleod/keyguard/directory"
	"github.com/jmcleod/keyguard/gate"
	"github.com/jmcleod/keyguard/keymanager"
	"github.com/jmcleod/keyguard/storage"
	bboltstorage "github.com/jmcleod/keyguard/storage/bbolt"
	memorystorage "github.com/jmcleod/keyguard/storage/memory"
	sqlitestorage "github.com/jmcleod/keyguard/storage/sqlite"
)

// Version is the release version, overridable at build time.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "keyguard",
	Short: "KeyGuard keeps API keys encrypted behind a device credential",
	Long: `KeyGuard stores third-party API keys encrypted at rest and unlocks them
through a device credential ceremony. An unlocked key stays available for a
short session, then locks itself again.
Complete documentation is available at https://github.com/jmcleod/keyguard`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// openStore builds the configured storage backend. The returned close
// function is a no-op for the memory backend.
func openStore(cfg *config.Config) (storage.Store, func() error, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memorystorage.NewStore(), func() error { return nil }, nil
	case config.BackendBBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("creating data directory: %w", err)
		}
		s, err := bboltstorage.NewStoreFromFile(cfg.Storage.Path, nil)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("creating data directory: %w", err)
		}
		s, err := sqlitestorage.NewStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newGate builds the configured credential gate. The terminal can only
// drive the PIN gate; WebAuthn ceremonies need a browser client against
// the daemon.
func newGate(cfg *config.Config) (gate.Gate, error) {
	switch cfg.Gate.Type {
	case config.GatePIN:
		return gate.NewPIN(terminalPrompt), nil
	case config.GateWebAuthn:
		return nil, fmt.Errorf("the webauthn gate needs a browser client; use gate.type pin for terminal use")
	default:
		return nil, fmt.Errorf("unknown gate type %q", cfg.Gate.Type)
	}
}

// newManager wires a Manager from configuration for one-shot CLI commands.
func newManager(ctx context.Context) (*keymanager.Manager, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	g, err := newGate(cfg)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	opts := []keymanager.ManagerOption{
		keymanager.WithSessionDuration(cfg.Session.Duration),
		keymanager.WithScheme(crypto.Scheme(cfg.Crypto.Scheme)),
		keymanager.WithLogger(newLogger(cfg)),
	}
	if cfg.Providers.Path != "" {
		dir, err := directory.Load(cfg.Providers.Path)
		if err != nil {
			closeStore()
			return nil, nil, err
		}
		opts = append(opts, keymanager.WithDirectory(dir))
	}

	m, err := keymanager.NewManager(ctx, store, g, opts...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return m, closeStore, nil
}
