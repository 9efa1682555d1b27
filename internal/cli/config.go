package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Run: func(cmd *cobra.Command, args []string) {
			if cfg.ConfigPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", cfg.ConfigPath)
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
		},
	}

	RootCmd.AddCommand(cmd)
}
