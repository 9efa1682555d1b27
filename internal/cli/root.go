// Package cli implements the mod-catalog CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rcliao/mod-catalog/internal/config"
	"github.com/rcliao/mod-catalog/internal/gameversion"
	"github.com/rcliao/mod-catalog/internal/logging"
	"github.com/rcliao/mod-catalog/internal/resolver"
	"github.com/rcliao/mod-catalog/internal/store"
)

var (
	configPath string

	cfg    *config.Config
	logger *log.Logger
	parser *gameversion.Parser
)

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"db":        "db",
	"log-level": "log.level",
	"ranker":    "resolver.ranker",
}

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "mod-catalog",
	Short: "Search a mod catalog and pick compatible releases",
	Long: "Search a catalog of mod releases with boolean queries, resolve the best jar for a " +
		"game version and loader, and detect updates. SQLite-backed, single binary.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := setup(cmd); err != nil {
			exitErr("config", err)
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./.mod-catalog.yaml or ~/.mod-catalog/config.yaml)")
	RootCmd.PersistentFlags().StringP("db", "d", "", "Database path (default: $MOD_CATALOG_DB or ~/.mod-catalog/catalog.db)")
	RootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	RootCmd.PersistentFlags().String("ranker", "", "Ranking backend: store or memory")
}

// setup loads configuration and builds the shared logger and version parser.
func setup(cmd *cobra.Command) error {
	v := viper.New()
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}
	c, err := config.Load(v, configPath)
	if err != nil {
		return err
	}
	l, err := logging.New(logging.Options{Level: c.Log.Level, Prefix: config.ApplicationName, JSON: c.Log.JSON})
	if err != nil {
		return err
	}
	cfg, logger = c, l
	parser = gameversion.NewParser(c.Versions.CacheSize)
	if c.ConfigPath != "" {
		logger.Debug("loaded config", "path", c.ConfigPath)
	}
	return nil
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DB, store.WithLogger(logger), store.WithParser(parser))
}

// newResolver builds a resolver over s using the configured ranking backend.
func newResolver(s *store.SQLiteStore) (*resolver.Resolver, error) {
	opts, err := cfg.ResolverOptions()
	if err != nil {
		return nil, err
	}
	opts.Parser = parser
	opts.Logger = logger

	var r resolver.Ranker = s
	if cfg.Resolver.Ranker == config.RankerMemory {
		r = resolver.NewMemoryRanker(s, parser, logger)
	}
	logger.Debug("resolver ready", "ranker", cfg.Resolver.Ranker, "policy", opts.Policy)
	return resolver.New(r, opts)
}

func printJSON(cmd *cobra.Command, v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitErr("encode output", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
