// Package xdg provides helpers to resolve XDG Base Directory paths for airplan.
// The config directory holds config.json and profiles.toml; the state directory
// holds files the tool writes on its own, such as the metrics textfile.
//
// On Windows, where the XDG variables are usually unset, the user config dir
// reported by the OS is used as the base instead of ~/.config.
package xdg

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under every XDG base.
const AppName = "airplan"

// ConfigDir returns the XDG config directory for airplan.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.config/airplan when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		var err error
		base, err = defaultBase(".config")
		if err != nil {
			return "", err
		}
	}
	return ensure(filepath.Join(base, AppName))
}

// StateDir returns the XDG state directory for airplan.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.local/state/airplan when XDG_STATE_HOME is unset.
func StateDir() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		var err error
		base, err = defaultBase(filepath.Join(".local", "state"))
		if err != nil {
			return "", err
		}
	}
	return ensure(filepath.Join(base, AppName))
}

func defaultBase(rel string) (string, error) {
	if runtime.GOOS == "windows" {
		return os.UserConfigDir()
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, rel), nil
}

func ensure(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}
