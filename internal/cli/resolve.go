package cli

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/mod-catalog/internal/model"
	"github.com/rcliao/mod-catalog/internal/resolver"
)

func init() {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Pick the best jar of a mod for a game version and loader",
		Long: "Resolve the best jar for each --mod in a project. Several mods are looked up " +
			"concurrently and coalesced into one ranking query.",
		Run: runResolve,
	}

	cmd.Flags().StringP("project", "p", "", "Project id or source:source_id (required)")
	cmd.Flags().StringSliceP("mod", "m", nil, "Mod id, repeatable (required)")
	cmd.Flags().StringP("loader", "L", "", "Loader: FORGE, NEOFORGE, FABRIC or QUILT (required)")
	cmd.Flags().StringP("game-version", "g", "", "Target game version, e.g. 1.16.5 (required)")

	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("mod")
	cmd.MarkFlagRequired("loader")
	cmd.MarkFlagRequired("game-version")

	RootCmd.AddCommand(cmd)
}

// resolution is one resolve result; Jar is null when nothing is compatible.
type resolution struct {
	Lookup resolver.Lookup `json:"lookup"`
	Jar    *model.ModJar   `json:"jar"`
}

func runResolve(cmd *cobra.Command, args []string) {
	projectRef, _ := cmd.Flags().GetString("project")
	mods, _ := cmd.Flags().GetStringSlice("mod")
	loaderName, _ := cmd.Flags().GetString("loader")
	gameVersion, _ := cmd.Flags().GetString("game-version")

	loader, err := model.ParseLoader(loaderName)
	if err != nil {
		exitErr("resolve", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	projectID, err := s.ResolveProject(cmd.Context(), projectRef)
	if err != nil {
		exitErr("resolve project", err)
	}
	res, err := newResolver(s)
	if err != nil {
		exitErr("resolver", err)
	}

	out := make([]resolution, len(mods))
	for i, modID := range mods {
		out[i].Lookup = resolver.Lookup{ProjectID: projectID, ModID: modID, Loader: loader, GameVersion: gameVersion}
	}

	if len(out) == 1 {
		out[0].Jar, err = res.ResolveBestJar(cmd.Context(), out[0].Lookup)
		if err != nil {
			exitErr("resolve", err)
		}
		printJSON(cmd, out[0])
		return
	}

	b := resolver.NewBatcher(res, cfg.Resolver.BatchWindow, cfg.Resolver.MaxBatch)
	g, ctx := errgroup.WithContext(cmd.Context())
	for i := range out {
		g.Go(func() error {
			jar, err := b.Load(ctx, out[i].Lookup)
			out[i].Jar = jar
			return err
		})
	}
	if err := g.Wait(); err != nil {
		exitErr("resolve", err)
	}
	printJSON(cmd, out)
}
