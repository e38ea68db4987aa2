package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/keyguard/api"
	"github.com/jmcleod/keyguard/internal/util"
)

var (
	tlsCert string
	tlsKey  string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the local key daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		m, closeStore, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		if cfg.Providers.Path != "" && cfg.Providers.Watch {
			if err := m.Directory().Watch(cmd.Context(), cfg.Providers.Path, logger); err != nil {
				return fmt.Errorf("watching provider directory: %w", err)
			}
		}

		a := api.New(m, api.WithLogger(logger))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		if cfg.Server.Metrics {
			r.Handle("/metrics", a.MetricsHandler())
		}
		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              cfg.Server.ListenAddress,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		serve := server.ListenAndServe
		if cfg.Server.TLS {
			var cert tls.Certificate
			if tlsCert != "" && tlsKey != "" {
				cert, err = tls.LoadX509KeyPair(tlsCert, tlsKey)
				if err != nil {
					return fmt.Errorf("failed to load TLS key pair: %w", err)
				}
			} else {
				cert, err = util.GenerateSelfSignedCert()
				if err != nil {
					return fmt.Errorf("failed to generate self-signed certificate: %w", err)
				}
				fmt.Println("Using self-signed runtime generated certificate for TLS")
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
			serve = func() error { return server.ListenAndServeTLS("", "") }
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Listening on %s (storage: %s)...\n", cfg.Server.ListenAddress, cfg.Storage.Backend)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			m.LockAllSessions()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}
