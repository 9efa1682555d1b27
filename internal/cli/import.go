package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/mod-catalog/internal/model"
	"github.com/rcliao/mod-catalog/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "Import projects from JSON",
		Long: "Import projects with their jars and failed files from JSON (a file, or stdin " +
			"when the argument is - or missing). Expects the format produced by export. " +
			"Jars already stored are skipped.",
		Args: cobra.MaximumNArgs(1),
		Run:  runImport,
	}

	RootCmd.AddCommand(cmd)
}

type importOutput struct {
	OK bool `json:"ok"`
	*store.ImportResult
}

func runImport(cmd *cobra.Command, args []string) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open input", err)
		}
		defer f.Close()
		r = f
	}

	var projects []model.Project
	if err := json.NewDecoder(r).Decode(&projects); err != nil {
		exitErr("parse json", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := s.Import(cmd.Context(), projects)
	if err != nil {
		exitErr("import", err)
	}

	printJSON(cmd, importOutput{OK: true, ImportResult: res})
}
