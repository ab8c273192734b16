// Package config loads the spiral configuration file
// ($XDG_CONFIG_HOME/spiral/config.yaml).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/spiral-tools/spiral/internal/logger"
	"github.com/spiral-tools/spiral/lin"
	"gopkg.in/yaml.v3"
)

// Config is the configuration file. Unset fields keep the command defaults.
type Config struct {
	DefaultGame string `yaml:"default_game,omitempty"`
	LogLevel    string `yaml:"log_level,omitempty"`
	Threads     *int   `yaml:"threads,omitempty"`

	// Archives are the paths of the registered game archives.
	Archives []string `yaml:"archives,omitempty"`
}

// DefaultPath returns the default configuration file path, or an empty string
// if there is no user configuration directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "spiral", "config.yaml")
}

// Load reads the configuration file at path. A missing file is not an error.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(buf, &c); err != nil {
		return c, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("config %q: %w", path, err)
	}
	return c, nil
}

// Validate checks the values of the set fields.
func (c Config) Validate() error {
	if c.DefaultGame != "" {
		if _, err := lin.ParseGame(c.DefaultGame); err != nil {
			return fmt.Errorf("default_game: %w", err)
		}
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Threads != nil && *c.Threads < 0 {
		return fmt.Errorf("threads: must not be negative")
	}
	return nil
}

// Save writes the configuration file to path, creating its directory if
// needed.
func (c Config) Save(path string) error {
	if path == "" {
		return fmt.Errorf("save config: no path")
	}
	buf, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tf, err := os.CreateTemp(filepath.Dir(path), ".config*.yaml")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	defer os.Remove(tf.Name())
	defer tf.Close()

	if _, err := tf.Write(buf); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := tf.Close(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.Rename(tf.Name(), path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Game returns the configured default game, or dr1.
func (c Config) Game() (lin.Game, error) {
	if c.DefaultGame == "" {
		return lin.GameDR1, nil
	}
	return lin.ParseGame(c.DefaultGame)
}

// Register adds archive paths which aren't already registered, returning the
// number added.
func (c *Config) Register(paths ...string) int {
	var n int
	for _, p := range paths {
		p = filepath.Clean(p)
		if !slices.Contains(c.Archives, p) {
			c.Archives = append(c.Archives, p)
			n++
		}
	}
	return n
}

// Unregister removes archive paths, returning the number removed.
func (c *Config) Unregister(paths ...string) int {
	n := len(c.Archives)
	for _, p := range paths {
		p = filepath.Clean(p)
		c.Archives = slices.DeleteFunc(c.Archives, func(a string) bool { return a == p })
	}
	return n - len(c.Archives)
}
