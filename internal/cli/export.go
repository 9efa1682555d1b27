package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/mod-catalog/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as JSON",
		Long:  "Export every project with its jars and failed files. The output can be fed back to import.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	projects, err := s.ExportAll(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}
	if projects == nil {
		projects = []model.Project{}
	}

	printJSON(cmd, projects)
}
