// Package config loads iecat settings from viper (config file, IECAT_*
// environment variables and flags) into a typed Config.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading ~ and $VAR references in a path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}

// DefaultDatabasePath is where the SQLite rule store lives unless configured.
func DefaultDatabasePath() string {
	return filepath.Join("~", ".local", "share", "iecat", "iecat.db")
}

// DefaultConfigDir holds config.yaml.
func DefaultConfigDir() string {
	return ExpandPath(filepath.Join("~", ".config", "iecat"))
}
