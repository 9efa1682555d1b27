package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/mod-catalog/internal/mavenrange"
)

func init() {
	cmd := &cobra.Command{
		Use:     "range [maven-range]",
		Short:   "Translate a Maven version range into comparison operators",
		Example: `  mod-catalog range '[1.0,2.0),[3.0,)'`,
		Args:    cobra.ExactArgs(1),
		Run:     runRange,
	}

	RootCmd.AddCommand(cmd)
}

func runRange(cmd *cobra.Command, args []string) {
	eq, err := mavenrange.ToEquivalent(args[0])
	if err != nil {
		exitErr("range", err)
	}
	printJSON(cmd, map[string]string{
		"range":      args[0],
		"equivalent": eq,
	})
}
