package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/mod-catalog/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects, or the jars of one project",
		Run:   runList,
	}

	cmd.Flags().StringP("project", "p", "", "List jars of this project (id or source:source_id)")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("ids-only", false, "Only output ids")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	project, _ := cmd.Flags().GetString("project")
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	params := store.ListParams{Project: project, Limit: limit}
	if project == "" {
		projects, err := s.ListProjects(cmd.Context(), params)
		if err != nil {
			exitErr("list", err)
		}
		if idsOnly {
			for _, p := range projects {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s:%s\n", p.ID, p.Source, p.SourceID)
			}
			return
		}
		printJSON(cmd, projects)
		return
	}

	jars, err := s.ListJars(cmd.Context(), params)
	if err != nil {
		exitErr("list", err)
	}
	if idsOnly {
		for _, j := range jars {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", j.ID, j.FileName)
		}
		return
	}
	printJSON(cmd, jars)
}
