// Package config loads mod-catalog settings from defaults, an optional YAML
// file, MOD_CATALOG_* environment variables and bound CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/mod-catalog/internal/gameversion"
	"github.com/rcliao/mod-catalog/internal/resolver"
)

// ApplicationName names the config directory and the environment prefix.
const ApplicationName = "mod-catalog"

var ErrConfigNotFound = fmt.Errorf("application config not found")

// Ranker backends.
const (
	RankerStore  = "store"
	RankerMemory = "memory"
)

type Config struct {
	ConfigPath string         `yaml:"-" json:"configPath"` // where the config was read from, if anywhere
	DB         string         `yaml:"db" json:"db" mapstructure:"db"`
	Log        Logging        `yaml:"log" json:"log" mapstructure:"log"`
	Resolver   ResolverConfig `yaml:"resolver" json:"resolver" mapstructure:"resolver"`
	Versions   Versions       `yaml:"versions" json:"versions" mapstructure:"versions"`
	Search     Search         `yaml:"search" json:"search" mapstructure:"search"`
}

type Logging struct {
	Level string `yaml:"level" json:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" json:"json" mapstructure:"json"`
}

type ResolverConfig struct {
	Ranker               string        `yaml:"ranker" json:"ranker" mapstructure:"ranker"` // store or memory
	Policy               []string      `yaml:"policy" json:"policy" mapstructure:"policy"` // ranking key names, highest priority first
	BatchWindow          time.Duration `yaml:"batch-window" json:"batchWindow" mapstructure:"batch-window"`
	MaxBatch             int           `yaml:"max-batch" json:"maxBatch" mapstructure:"max-batch"`
	MaxConcurrentQueries int           `yaml:"max-concurrent-queries" json:"maxConcurrentQueries" mapstructure:"max-concurrent-queries"`
	MaxLookupsPerQuery   int           `yaml:"max-lookups-per-query" json:"maxLookupsPerQuery" mapstructure:"max-lookups-per-query"`
}

type Versions struct {
	CacheSize int `yaml:"cache-size" json:"cacheSize" mapstructure:"cache-size"`
}

type Search struct {
	Limit int `yaml:"limit" json:"limit" mapstructure:"limit"`
}

// DefaultDBPath returns ~/.mod-catalog/catalog.db, or a relative path when
// the home directory is unknown.
func DefaultDBPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join("."+ApplicationName, "catalog.db")
	}
	return filepath.Join(home, "."+ApplicationName, "catalog.db")
}

func loadDefaultValues(v *viper.Viper) {
	v.SetDefault("db", DefaultDBPath())
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.json", false)
	v.SetDefault("resolver.ranker", RankerStore)
	v.SetDefault("resolver.policy", []string{})
	v.SetDefault("resolver.batch-window", resolver.DefaultBatchWindow)
	v.SetDefault("resolver.max-batch", resolver.DefaultMaxBatch)
	v.SetDefault("resolver.max-concurrent-queries", resolver.DefaultMaxConcurrentQueries)
	v.SetDefault("resolver.max-lookups-per-query", resolver.DefaultMaxLookupsPerQuery)
	v.SetDefault("versions.cache-size", gameversion.DefaultCacheSize)
	v.SetDefault("search.limit", 20)
}

// Load reads the configuration into v and decodes it. An empty configPath
// searches the working directory and then ~/.mod-catalog; finding no file
// is not an error.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	loadDefaultValues(v)

	if err := readConfig(v, configPath); err != nil && !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid application config: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.DB == "" {
		return errors.New("db path is empty")
	}
	if expanded, err := homedir.Expand(cfg.DB); err == nil {
		cfg.DB = expanded
	}
	switch cfg.Resolver.Ranker {
	case RankerStore, RankerMemory:
	default:
		return fmt.Errorf("resolver.ranker must be %q or %q, got %q", RankerStore, RankerMemory, cfg.Resolver.Ranker)
	}
	if _, err := cfg.Policy(); err != nil {
		return fmt.Errorf("resolver.policy: %w", err)
	}
	if cfg.Resolver.BatchWindow < 0 {
		return fmt.Errorf("resolver.batch-window must not be negative")
	}
	return nil
}

// Policy returns the configured ranking policy, normalized.
func (cfg *Config) Policy() (resolver.Policy, error) {
	return resolver.ParsePolicy(cfg.Resolver.Policy)
}

// ResolverOptions maps the resolver section onto resolver.Options. The
// caller fills in Parser and Logger.
func (cfg *Config) ResolverOptions() (resolver.Options, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return resolver.Options{}, err
	}
	return resolver.Options{
		Policy:               policy,
		MaxLookupsPerQuery:   cfg.Resolver.MaxLookupsPerQuery,
		MaxConcurrentQueries: cfg.Resolver.MaxConcurrentQueries,
	}, nil
}

func (cfg Config) String() string {
	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return err.Error()
	}
	return string(out)
}

// readConfig reads the given config path or discovers one.
func readConfig(v *viper.Viper, configPath string) error {
	v.AutomaticEnv()
	v.SetEnvPrefix(strings.ReplaceAll(ApplicationName, "-", "_"))
	// nested keys map onto env vars, e.g. resolver.max-batch = MOD_CATALOG_RESOLVER_MAX_BATCH
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read application config=%q : %w", configPath, err)
		}
		return nil
	}

	// 1. .mod-catalog.yaml in the current directory
	v.AddConfigPath(".")
	v.SetConfigName("." + ApplicationName)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err == nil {
		return nil
	} else if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return fmt.Errorf("unable to parse config=%q: %w", v.ConfigFileUsed(), err)
	}

	// 2. ~/.mod-catalog/config.yaml
	home, err := homedir.Dir()
	if err != nil {
		return ErrConfigNotFound
	}
	path := filepath.Join(home, "."+ApplicationName, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ErrConfigNotFound
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to parse config=%q: %w", path, err)
	}
	return nil
}
