package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [jar]",
		Short: "Show one jar with its mods",
		Long:  "Look up a jar by id, external id or source file id.",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	jar, err := s.GetJar(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}
	printJSON(cmd, jar)
}
