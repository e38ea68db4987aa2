package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var revokeYes bool

var revokeCmd = &cobra.Command{
	Use:   "revoke <provider>",
	Short: "Delete a provider's credential and stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := args[0]

		if !revokeYes {
			fmt.Fprintf(os.Stderr, "Delete the stored key and credential for %s? [y/N] ", provider)
			answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return err
			}
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Fprintln(os.Stderr, "Aborted.")
				return nil
			}
		}

		m, closeStore, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		if err := m.Revoke(cmd.Context(), provider); err != nil {
			return err
		}
		color.Green("✓ Revoked %s", provider)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(revokeCmd)
	revokeCmd.Flags().BoolVarP(&revokeYes, "yes", "y", false, "skip the confirmation prompt")
}
