// Package config handles the global CLI configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/zot/config.yml.
type GlobalConfig struct {
	LibraryID   string `yaml:"library_id,omitempty"`
	LibraryType string `yaml:"library_type,omitempty"` // "user" or "group"
	APIKey      string `yaml:"api_key,omitempty"`
	S2APIKey    string `yaml:"s2_api_key,omitempty"`
	Locale      string `yaml:"locale,omitempty"`
	Local       bool   `yaml:"local,omitempty"` // talk to the desktop app instead of the web API
	IndexPath   string `yaml:"index_path,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "zot"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file. Respects
// XDG_CONFIG_HOME, defaults to ~/.config/zot/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file. Returns an empty
// config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}
	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}
	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}
	globalConfigCache = &cfg
	return &cfg, nil
}

// SaveGlobalConfig writes the global configuration file, creating the
// directory when necessary.
func SaveGlobalConfig(cfg *GlobalConfig) error {
	path := GlobalConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	globalConfigCache = cfg
	return nil
}

// ResolvedIndexPath returns the configured DOI index location, defaulting
// to a doi.db next to the config file.
func (c *GlobalConfig) ResolvedIndexPath() string {
	if c.IndexPath != "" {
		return c.IndexPath
	}
	return filepath.Join(filepath.Dir(GlobalConfigPath()), "doi.db")
}
