package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <provider>",
	Short: "Enroll a device credential for a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := args[0]

		m, closeStore, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		if err := m.Enroll(cmd.Context(), provider); err != nil {
			return err
		}
		color.Green("✓ Enrolled %s", provider)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}
