package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmcleod/keyguard/events"
	"github.com/jmcleod/keyguard/keymanager"
)

var testCmd = &cobra.Command{
	Use:   "test <provider>",
	Short: "Test a stored API key against the provider's API",
	Long: `Decrypts the stored key (after a credential ceremony) and makes one
authenticated request against the provider's test endpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := args[0]

		m, closeStore, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()
		defer m.LockAllSessions()

		// The ceremony prompts on the terminal, so the spinner only starts
		// once the key is unlocked and the network call begins.
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Calling %s...", provider)
		_ = s.Color("cyan")
		m.On(keymanager.EventSecretRetrieved, func(events.Event) { s.Start() })

		result, err := m.TestSecret(cmd.Context(), provider)
		s.Stop()
		if err != nil {
			return err
		}

		if result.OK {
			color.Green("✓ Key for %s accepted (HTTP %d)", provider, result.StatusCode)
			return nil
		}
		color.Red("✗ Key for %s rejected (HTTP %d)", provider, result.StatusCode)
		return fmt.Errorf("provider rejected the stored key")
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
