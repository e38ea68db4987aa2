package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List known providers and their stored state",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeStore, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		statuses, err := m.List(cmd.Context())
		if err != nil {
			return err
		}
		byName := make(map[string]bool, len(statuses))
		stored := make(map[string]bool, len(statuses))
		for _, s := range statuses {
			byName[s.Provider] = s.Enrolled
			stored[s.Provider] = s.HasSecret
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tENROLLED\tKEY STORED")
		for _, name := range m.Directory().Names() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, mark(byName[name]), mark(stored[name]))
		}
		return w.Flush()
	},
}

func mark(ok bool) string {
	if ok {
		return color.GreenString("yes")
	}
	return "no"
}

func init() {
	rootCmd.AddCommand(listCmd)
}
