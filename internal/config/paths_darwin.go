//go:build darwin

package config

import (
	"os"
	"path/filepath"
)

func defaultDataDir() string {
	return filepath.Join(dataHome(), "promptlab")
}

// dataHome honours XDG_DATA_HOME when set so tests behave the same on every
// platform; otherwise it uses Application Support.
func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Application Support")
	}
	return "."
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Preferences")
	}
	return "."
}
