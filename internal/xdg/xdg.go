// Package xdg resolves XDG Base Directory paths for convtrack.
//
// Configuration lives under $XDG_CONFIG_HOME/convtrack and local state (the
// file-backed transaction-id store, the file keyring) under
// $XDG_STATE_HOME/convtrack. Both fall back to the conventional locations in
// the home directory and are created private (0700) on first use.
package xdg

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used below every XDG base.
const AppName = "convtrack"

// ConfigDir returns the XDG config directory, creating it if missing.
// It falls back to ~/.config/convtrack when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory, creating it if missing.
// It falls back to ~/.local/state/convtrack when XDG_STATE_HOME is unset.
func StateDir() (string, error) {
	return appDir("XDG_STATE_HOME", ".local", "state")
}

func appDir(env string, fallback ...string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(append([]string{home}, fallback...)...)
	}
	dir := filepath.Join(base, AppName)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}
