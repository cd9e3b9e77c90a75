// Package config loads callmap settings from .callmap.yaml, CALLMAP_
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zheng/callmap/internal/export"
)

const (
	// FileName is the config file looked up in the working directory
	FileName = ".callmap"

	// EnvPrefix prefixes environment overrides, e.g. CALLMAP_JOBS
	EnvPrefix = "CALLMAP"
)

// Neo4jConfig holds the optional graph database sink settings
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// Enabled reports whether a Neo4j sink is configured
func (c Neo4jConfig) Enabled() bool { return c.URI != "" }

// GitConfig selects files changed in git
type GitConfig struct {
	Changed bool   `mapstructure:"changed"`
	Base    string `mapstructure:"base"`
}

// WatchConfig tunes watch mode
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Config is the resolved configuration of a run
type Config struct {
	DB            string        `mapstructure:"db"`
	Mode          string        `mapstructure:"mode"`
	IgnoreHeader  bool          `mapstructure:"ignore_header"`
	OutputDir     string        `mapstructure:"output_dir"`
	Renderer      string        `mapstructure:"renderer"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`
	Jobs          int           `mapstructure:"jobs"`
	Store         bool          `mapstructure:"store"`
	Quiet         bool          `mapstructure:"quiet"`
	MetricsFile   string        `mapstructure:"metrics_file"`
	IncludeDirs   []string      `mapstructure:"include_dirs"`
	Verbose       bool          `mapstructure:"verbose"`

	Neo4j Neo4jConfig `mapstructure:"neo4j"`
	Git   GitConfig   `mapstructure:"git"`
	Watch WatchConfig `mapstructure:"watch"`
}

// DefaultConfig returns the settings used when nothing overrides them
func DefaultConfig() *Config {
	return &Config{
		DB:            ".callmap.db",
		Mode:          export.ModeImageOnly.String(),
		Renderer:      "exec",
		RenderTimeout: export.DefaultRenderTimeout,
		Jobs:          runtime.NumCPU(),
		Store:         true,
		Git:           GitConfig{Base: "HEAD"},
		Watch:         WatchConfig{Debounce: 500 * time.Millisecond},
	}
}

// New returns a viper instance carrying the defaults, the config file
// search path and environment overrides. An empty file searches the
// working directory for .callmap.yaml.
func New(file string) *viper.Viper {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("db", d.DB)
	v.SetDefault("mode", d.Mode)
	v.SetDefault("ignore_header", d.IgnoreHeader)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("renderer", d.Renderer)
	v.SetDefault("render_timeout", d.RenderTimeout)
	v.SetDefault("jobs", d.Jobs)
	v.SetDefault("store", d.Store)
	v.SetDefault("quiet", d.Quiet)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("include_dirs", d.IncludeDirs)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("neo4j.uri", d.Neo4j.URI)
	v.SetDefault("neo4j.user", d.Neo4j.User)
	v.SetDefault("neo4j.password", d.Neo4j.Password)
	v.SetDefault("git.changed", d.Git.Changed)
	v.SetDefault("git.base", d.Git.Base)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	return v
}

// Load reads the config file, if any, and decodes the merged settings.
// A missing .callmap.yaml is not an error; a missing explicit file is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings for values no command can work with
func (c *Config) Validate() error {
	if _, err := export.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := export.NewRenderer(c.Renderer, c.RenderTimeout); err != nil {
		return err
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("render_timeout must be positive, got %s", c.RenderTimeout)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if c.Store && c.DB == "" {
		return fmt.Errorf("db path is required when store is enabled")
	}
	if c.Neo4j.Enabled() && c.Neo4j.User == "" {
		return fmt.Errorf("neo4j user is required when neo4j uri is set")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return nil
}

// ExportMode returns the parsed output mode
func (c *Config) ExportMode() export.Mode {
	m, _ := export.ParseMode(c.Mode)
	return m
}
