package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tests of the toplevel.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		_, reg, err := lookupToplevel(cfg.Toplevel)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TEST\tTIMEOUT\tSKIP\tEXPECT_FAIL")

		for _, t := range reg.Tests() {
			timeout := "-"
			if t.Timeout > 0 {
				timeout = t.Timeout.String()
			}

			fmt.Fprintf(w, "%s\t%s\t%t\t%t\n",
				t.Name, timeout, t.Skip, t.ExpectFail)
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
