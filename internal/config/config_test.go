package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/mod-catalog/internal/resolver"
)

// sandbox points HOME and the working directory at a fresh temp dir.
func sandbox(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	home := sandbox(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".mod-catalog", "catalog.db"), cfg.DB)
	assert.Equal(t, "", cfg.ConfigPath)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, RankerStore, cfg.Resolver.Ranker)
	assert.Equal(t, resolver.DefaultBatchWindow, cfg.Resolver.BatchWindow)
	assert.Equal(t, resolver.DefaultMaxBatch, cfg.Resolver.MaxBatch)
	assert.Equal(t, 20, cfg.Search.Limit)

	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, resolver.DefaultPolicy, p)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := sandbox(t)
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, `
db: ~/mods/catalog.db
log:
  level: debug
resolver:
  ranker: memory
  policy: [release_date, exact_loader]
  batch-window: 10ms
  max-lookups-per-query: 50
versions:
  cache-size: 16
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigPath)
	assert.Equal(t, filepath.Join(dir, "mods", "catalog.db"), cfg.DB, "home is expanded")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, RankerMemory, cfg.Resolver.Ranker)
	assert.Equal(t, 10*time.Millisecond, cfg.Resolver.BatchWindow)
	assert.Equal(t, 16, cfg.Versions.CacheSize)

	opts, err := cfg.ResolverOptions()
	require.NoError(t, err)
	assert.Equal(t, resolver.Policy{resolver.KeyReleaseDate, resolver.KeyExactLoader, resolver.KeyJarID}, opts.Policy)
	assert.Equal(t, 50, opts.MaxLookupsPerQuery)
	assert.Equal(t, resolver.DefaultMaxConcurrentQueries, opts.MaxConcurrentQueries)
}

func TestLoadDiscoversFiles(t *testing.T) {
	dir := sandbox(t)
	writeFile(t, filepath.Join(dir, ".mod-catalog", "config.yaml"), "search:\n  limit: 7\n")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.Limit)
	assert.Equal(t, filepath.Join(dir, ".mod-catalog", "config.yaml"), cfg.ConfigPath)

	writeFile(t, filepath.Join(dir, ".mod-catalog.yaml"), "search:\n  limit: 3\n")
	cfg, err = Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Search.Limit, "working directory wins over home")
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := sandbox(t)
	t.Setenv("MOD_CATALOG_DB", filepath.Join(dir, "env.db"))
	t.Setenv("MOD_CATALOG_RESOLVER_RANKER", "memory")
	t.Setenv("MOD_CATALOG_RESOLVER_MAX_BATCH", "9")
	t.Setenv("MOD_CATALOG_RESOLVER_POLICY", "release_tier,jar_id")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "env.db"), cfg.DB)
	assert.Equal(t, RankerMemory, cfg.Resolver.Ranker)
	assert.Equal(t, 9, cfg.Resolver.MaxBatch)

	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, resolver.Policy{resolver.KeyReleaseTier, resolver.KeyJarID}, p)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := sandbox(t)

	tests := []struct {
		name, yaml string
	}{
		{"ranker", "resolver:\n  ranker: postgres\n"},
		{"policy", "resolver:\n  policy: [popularity]\n"},
		{"repeated key", "resolver:\n  policy: [jar_id, jar_id]\n"},
		{"negative window", "resolver:\n  batch-window: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			writeFile(t, path, tt.yaml)
			_, err := Load(viper.New(), path)
			assert.ErrorContains(t, err, "invalid application config")
		})
	}

	_, err := Load(viper.New(), filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "unable to read application config")
}

func TestConfigString(t *testing.T) {
	sandbox(t)
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	out := cfg.String()
	assert.Contains(t, out, "ranker: store")
	assert.Contains(t, out, "batch-window: 2ms")
}
