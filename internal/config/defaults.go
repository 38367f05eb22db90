package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/tonegrid/
//   - Linux:   ~/.local/share/tonegrid/
//   - Windows: %APPDATA%\tonegrid\
//
// Falls back to ~/.tonegrid if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home := os.Getenv("HOME")
		if home == "" {
			home, _ = os.UserHomeDir()
		}
		return filepath.Join(home, "Library", "Application Support", "tonegrid")
	case "linux":
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "tonegrid")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "tonegrid")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "tonegrid")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "tonegrid")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".tonegrid")
	}
}

// FindConfigFile searches for a config file in standard locations. Returns
// the first found path, or empty string if none exists.
func FindConfigFile() string {
	searchDirs := []string{".", DataDir()}

	for _, dir := range searchDirs {
		for _, ext := range []string{"toml", "json", "yaml", "yml"} {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}
