package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/callmap/internal/export"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(""))
	require.NoError(t, err)

	want := DefaultConfig()
	want.IncludeDirs = cfg.IncludeDirs
	assert.Equal(t, want, cfg)
	assert.Equal(t, export.ModeImageOnly, cfg.ExportMode())
	assert.False(t, cfg.Neo4j.Enabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".callmap.yaml"), []byte(`
mode: dot-graph
jobs: 3
render_timeout: 5s
include_dirs:
  - include
neo4j:
  uri: bolt://localhost:7687
  user: neo4j
watch:
  debounce: 1s
`), 0o644))
	t.Setenv("CALLMAP_JOBS", "7")
	t.Setenv("CALLMAP_NEO4J_PASSWORD", "secret")

	cfg, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, export.ModeDotAndImage, cfg.ExportMode())
	assert.Equal(t, 7, cfg.Jobs, "environment overrides the file")
	assert.Equal(t, 5*time.Second, cfg.RenderTimeout)
	assert.Equal(t, []string{"include"}, cfg.IncludeDirs)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "secret", cfg.Neo4j.Password)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.True(t, cfg.Neo4j.Enabled())
}

func TestLoadFlags(t *testing.T) {
	t.Chdir(t.TempDir())

	fs := pflag.NewFlagSet("map", pflag.ContinueOnError)
	fs.Int("jobs", 1, "")
	fs.Bool("ignore-header", false, "")
	require.NoError(t, fs.Parse([]string{"--jobs", "2", "--ignore-header"}))

	v := New("")
	require.NoError(t, v.BindPFlag("jobs", fs.Lookup("jobs")))
	require.NoError(t, v.BindPFlag("ignore_header", fs.Lookup("ignore-header")))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Jobs)
	assert.True(t, cfg.IgnoreHeader)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("renderer: builtin\n"), 0o644))

	cfg, err := Load(New(path))
	require.NoError(t, err)
	assert.Equal(t, "builtin", cfg.Renderer)

	_, err = Load(New(filepath.Join(dir, "missing.yaml")))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad mode", func(c *Config) { c.Mode = "svg" }, true},
		{"bad renderer", func(c *Config) { c.Renderer = "cairo" }, true},
		{"zero timeout", func(c *Config) { c.RenderTimeout = 0 }, true},
		{"zero jobs", func(c *Config) { c.Jobs = 0 }, true},
		{"store without db", func(c *Config) { c.DB = "" }, true},
		{"no store without db", func(c *Config) { c.DB = ""; c.Store = false }, false},
		{"neo4j without user", func(c *Config) { c.Neo4j.URI = "bolt://x" }, true},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
