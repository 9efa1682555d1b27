package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rcliao/mod-catalog/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "deps [mod-id]",
		Short: "Show dependencies and dependents of a mod",
		Long: "Show what the newest stored version of a mod depends on, and which mods " +
			"depend on it in their newest version. Maven ranges are shown with their " +
			"comparison-operator equivalent.",
		Args: cobra.ExactArgs(1),
		Run:  runDeps,
	}

	cmd.Flags().Bool("dependents-only", false, "Only list mods that depend on this one")

	RootCmd.AddCommand(cmd)
}

type depsOutput struct {
	ModID        string                 `json:"mod_id"`
	Dependencies []store.DependencyEdge `json:"dependencies"`
	Dependents   []store.DependencyEdge `json:"dependents"`
}

func runDeps(cmd *cobra.Command, args []string) {
	dependentsOnly, _ := cmd.Flags().GetBool("dependents-only")
	modID := args[0]

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	out := depsOutput{
		ModID:        modID,
		Dependencies: []store.DependencyEdge{},
		Dependents:   []store.DependencyEdge{},
	}
	if !dependentsOnly {
		deps, err := s.Dependencies(cmd.Context(), modID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			logger.Warn("mod not in catalog", "mod", modID)
		case err != nil:
			exitErr("dependencies", err)
		case deps != nil:
			out.Dependencies = deps
		}
	}
	dependents, err := s.Dependents(cmd.Context(), modID)
	if err != nil {
		exitErr("dependents", err)
	}
	if dependents != nil {
		out.Dependents = dependents
	}
	printJSON(cmd, out)
}
