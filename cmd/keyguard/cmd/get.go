package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <provider>",
	Short: "Decrypt and print a provider's API key",
	Long: `Runs a credential ceremony, decrypts the stored key and prints it to
stdout. Suitable for command substitution:

  export OPENAI_API_KEY=$(keyguard get openai)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := args[0]

		m, closeStore, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		secret, err := m.RetrieveSecret(cmd.Context(), provider)
		if err != nil {
			return err
		}
		defer m.LockAllSessions()

		fmt.Println(secret)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
