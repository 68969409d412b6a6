package config

import (
	"os"
	"path/filepath"
)

const appDir = "ensdb"

// DefaultDataDir returns the default data directory based on the host OS.
// XDG_DATA_HOME wins, then the first existing platform location, then a
// dotdir in the user's home directory.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}

	candidates := []struct{ parent, dir string }{
		{"/var/lib", filepath.Join("/var/lib", appDir)},
		{filepath.Join(homeDir, "Library"), filepath.Join(homeDir, "Library", "Application Support", appDir)},
		{filepath.Join(homeDir, "AppData"), filepath.Join(homeDir, "AppData", "Local", appDir)},
	}
	for _, c := range candidates {
		if isDir(c.parent) {
			return c.dir
		}
	}
	return filepath.Join(homeDir, "."+appDir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
