// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; profile passwords go to the OS keychain
// and the profile list itself lives in profiles.toml (see package profile).
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"airplan/cli/internal/xdg"
)

// Environment overrides applied on top of the file.
const (
	EnvProfilesFile = "AIRPLAN_PROFILES"
	EnvDatabase     = "AIRPLAN_DATABASE"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel     string `json:"log_level"`
	LogFormat    string `json:"log_format"`
	Database     string `json:"database"`
	WriteRetries int    `json:"write_retries"`
	MetricsFile  string `json:"metrics_file,omitempty"`
	ProfilesFile string `json:"profiles_file,omitempty"`
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    "console",
		Database:     "commercials",
		WriteRetries: 0,
	}
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults.
func Load() (Config, error) {
	p, err := path()
	if err != nil {
		return Default(), err
	}
	return LoadFile(p)
}

// LoadFile reads configuration from p. Fields absent from the file keep their
// default values and environment overrides are applied last.
func LoadFile(p string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&c)
			return c, nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	if c.WriteRetries < 0 {
		c.WriteRetries = 0
	}
	applyEnv(&c)
	return c, nil
}

func applyEnv(c *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvProfilesFile)); v != "" {
		c.ProfilesFile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabase)); v != "" {
		c.Database = v
	}
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
