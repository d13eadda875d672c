// Package config loads daemon configuration from the workspace config file,
// environment variables, and defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the daemon's tunables.
type Config struct {
	// Roots are the directories scanned for work-item documents,
	// relative to the workspace unless absolute.
	Roots []string `mapstructure:"roots"`

	// Debounce is the quiet period before a scheduled refresh runs.
	Debounce time.Duration `mapstructure:"debounce"`

	// BatchQuiet is the settling period after VCS marker activity stops.
	BatchQuiet time.Duration `mapstructure:"batch_quiet"`

	// CacheSize bounds the metadata cache entry count.
	CacheSize int `mapstructure:"cache_size"`

	// FeedPort is the WebSocket feed listen port; 0 disables the feed.
	FeedPort int `mapstructure:"feed_port"`

	// LogFile, when set, receives rotated daemon logs in addition to
	// stderr.
	LogFile string `mapstructure:"log_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Roots:      []string{"."},
		Debounce:   300 * time.Millisecond,
		BatchQuiet: 500 * time.Millisecond,
		CacheSize:  1000,
		FeedPort:   0,
	}
}

// Load reads .planboard.yaml from the workspace, applies PLANBOARD_*
// environment overrides, and fills the rest from defaults. A missing config
// file is not an error.
func Load(workspace string) (*Config, error) {
	def := Default()

	v := viper.New()
	v.SetConfigName(".planboard")
	v.SetConfigType("yaml")
	v.AddConfigPath(workspace)

	v.SetEnvPrefix("PLANBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("roots", def.Roots)
	v.SetDefault("debounce", def.Debounce)
	v.SetDefault("batch_quiet", def.BatchQuiet)
	v.SetDefault("cache_size", def.CacheSize)
	v.SetDefault("feed_port", def.FeedPort)
	v.SetDefault("log_file", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Anchor relative roots at the workspace so the daemon behaves the
	// same regardless of the invocation directory.
	for i, root := range cfg.Roots {
		if !filepath.IsAbs(root) {
			cfg.Roots[i] = filepath.Join(workspace, root)
		}
	}
	if cfg.LogFile != "" && !filepath.IsAbs(cfg.LogFile) {
		cfg.LogFile = filepath.Join(workspace, cfg.LogFile)
	}

	return cfg, nil
}
