// Package config handles CLI default configuration for the synthesize
// command.
//
// Config is stored at $XDG_CONFIG_HOME/tacos/config.yaml (defaults to
// ~/.config/tacos/config.yaml) and follows the kubeconfig pattern: named
// presets bundling a topology specifier, algorithm, and chunk parameters,
// with a current-preset selector so a user's usual benchmark can be invoked
// by name instead of repeating flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jsonW0/bean-tacos"
)

// Preset bundles the flags a synthesize invocation needs so a named
// configuration can stand in for them.
type Preset struct {
	Topology         string  `yaml:"topology"`
	Synthesizer      string  `yaml:"synthesizer"`
	ChunkSize        float64 `yaml:"chunk-size,omitempty"`
	CollectivesCount int     `yaml:"collectives-count,omitempty"`
	TimeLimitSeconds float64 `yaml:"time-limit-seconds,omitempty"`
	NumBeams         int     `yaml:"num-beams,omitempty"`
	NumTrials        int     `yaml:"num-trials,omitempty"`
	FitnessType      string  `yaml:"fitness-type,omitempty"`
	Temperature      float64 `yaml:"temperature,omitempty"`
	Seed             int64   `yaml:"seed,omitempty"`
}

// EffectiveChunkSize returns the preset's chunk size, or the package default
// if unset.
func (p Preset) EffectiveChunkSize() tacos.ChunkSize {
	if p.ChunkSize <= 0 {
		return tacos.UnitChunkSize
	}
	return tacos.ChunkSize(p.ChunkSize)
}

// EffectiveCollectivesCount returns the preset's repetition count, or 1 if
// unset.
func (p Preset) EffectiveCollectivesCount() int {
	if p.CollectivesCount <= 0 {
		return 1
	}
	return p.CollectivesCount
}

// Config holds named synthesis presets and the current selection.
type Config struct {
	CurrentPreset string            `yaml:"current-preset"`
	Presets       map[string]Preset `yaml:"presets"`
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/tacos/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "tacos", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "tacos", "config.yaml")
}

// Load reads the config file. If the file does not exist, an empty Config is
// returned (not an error).
func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{Presets: make(map[string]Preset)}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Presets == nil {
		cfg.Presets = make(map[string]Preset)
	}
	return &cfg, nil
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save() error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Current returns the current preset name and value. The bool is false when
// no current preset is set.
func (c *Config) Current() (string, Preset, bool) {
	if c.CurrentPreset == "" {
		return "", Preset{}, false
	}
	preset, ok := c.Presets[c.CurrentPreset]
	if !ok {
		return "", Preset{}, false
	}
	return c.CurrentPreset, preset, true
}

// Use sets the current preset. It returns an error if the name doesn't
// exist.
func (c *Config) Use(name string) error {
	if _, ok := c.Presets[name]; !ok {
		return fmt.Errorf("preset %q not found", name)
	}
	c.CurrentPreset = name
	return nil
}

// Set adds or updates a named preset.
func (c *Config) Set(name string, preset Preset) {
	c.Presets[name] = preset
}

// Remove deletes a preset. If it was the current preset, current-preset is
// cleared. Returns an error if the name doesn't exist.
func (c *Config) Remove(name string) error {
	if _, ok := c.Presets[name]; !ok {
		return fmt.Errorf("preset %q not found", name)
	}
	delete(c.Presets, name)
	if c.CurrentPreset == name {
		c.CurrentPreset = ""
	}
	return nil
}
