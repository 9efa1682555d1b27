package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/mod-catalog/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search mods with a boolean query",
		Long: "Search the catalog with field:value terms joined by AND, OR and NOT. " +
			"Values may use * and ? wildcards, quoted phrases, and [a TO b] ranges on " +
			"gameVersion and releaseDate. Bare terms match display names.",
		Example: `  mod-catalog search 'loader:FABRIC AND gameVersion:[1.19 TO 1.20]'
  mod-catalog search 'modId:jei OR dependsOn:cloth*'`,
		Args: cobra.MinimumNArgs(1),
		Run:  runSearch,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max results (default: search.limit)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = cfg.Search.Limit
	}
	query := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		Query: query,
		Limit: limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if results == nil {
		results = []store.SearchResult{}
	}
	printJSON(cmd, results)
}
