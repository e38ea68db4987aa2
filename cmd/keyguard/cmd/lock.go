package cmd

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock [provider]",
	Short: "End unlock sessions held by a running daemon",
	Long: `Lock tells a running keyguard daemon to end unlock sessions, wiping the
cached secrets. With a provider argument only that provider's session ends;
without one every session ends.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		path := "/api/v1/lock"
		if len(args) == 1 {
			path = "/api/v1/providers/" + url.PathEscape(args[0]) + "/lock"
		}

		scheme := "http"
		client := &http.Client{Timeout: 10 * time.Second}
		if cfg.Server.TLS {
			scheme = "https"
			// The daemon serves loopback with a self-signed certificate
			// unless one was configured.
			client.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}

		endpoint := fmt.Sprintf("%s://%s%s", scheme, cfg.Server.ListenAddress, path)
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, endpoint, nil)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("reaching daemon at %s (is it running?): %w", cfg.Server.ListenAddress, err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		if resp.StatusCode != http.StatusNoContent {
			return fmt.Errorf("daemon returned %s", resp.Status)
		}

		if len(args) == 1 {
			color.Green("✓ Locked %s", args[0])
		} else {
			color.Green("✓ Locked all sessions")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
}
