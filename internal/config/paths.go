package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir returns the per-user directory holding settings and logs.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if runtime.GOOS == "darwin" {
		appSupport := filepath.Join(home, "Library", "Application Support", appDirName)
		dotConfig := filepath.Join(home, ".config", appDirName)
		// Existing ~/.config installs keep working on macOS.
		if _, err := os.Stat(dotConfig); err == nil {
			return dotConfig, nil
		}
		return appSupport, nil
	}

	return filepath.Join(home, ".config", appDirName), nil
}

// SettingsPath returns the fixed per-user settings file location.
func SettingsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFileName), nil
}
