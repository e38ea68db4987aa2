package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store <provider>",
	Short: "Encrypt and store an API key for a provider",
	Long: `Reads the API key from the terminal (hidden) or from stdin when piped,
runs a credential ceremony, and stores the key encrypted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := args[0]

		secret, err := readSecret("API key for " + provider)
		if err != nil {
			return err
		}

		m, closeStore, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		if err := m.StoreSecret(cmd.Context(), provider, secret); err != nil {
			return err
		}
		color.Green("✓ Stored key for %s", provider)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
}
