package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/mod-catalog/internal/model"
	"github.com/rcliao/mod-catalog/internal/resolver"
)

func init() {
	cmd := &cobra.Command{
		Use:   "updates",
		Short: "Show replacements for an installed jar",
		Long:  "For every mod inside the installed jar, find the best jar for the target game version and loader and report those that differ.",
		Run:   runUpdates,
	}

	cmd.Flags().StringP("jar", "j", "", "Installed jar id, external id or source file id (required)")
	cmd.Flags().StringP("loader", "L", "", "Loader (required)")
	cmd.Flags().StringP("game-version", "g", "", "Target game version (required)")

	cmd.MarkFlagRequired("jar")
	cmd.MarkFlagRequired("loader")
	cmd.MarkFlagRequired("game-version")

	RootCmd.AddCommand(cmd)
}

func runUpdates(cmd *cobra.Command, args []string) {
	jarRef, _ := cmd.Flags().GetString("jar")
	loaderName, _ := cmd.Flags().GetString("loader")
	gameVersion, _ := cmd.Flags().GetString("game-version")

	loader, err := model.ParseLoader(loaderName)
	if err != nil {
		exitErr("updates", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	installed, err := s.GetJar(cmd.Context(), jarRef)
	if err != nil {
		exitErr("get jar", err)
	}
	res, err := newResolver(s)
	if err != nil {
		exitErr("resolver", err)
	}

	updates, err := res.Updates(cmd.Context(), resolver.Installed{Jar: installed, Loader: loader, GameVersion: gameVersion})
	if err != nil {
		exitErr("updates", err)
	}
	if updates == nil {
		updates = []resolver.Update{}
	}
	printJSON(cmd, updates)
}
