// Package paths resolves where capcon keeps its files on the host.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "capcon"

// ConfigRoot returns the capcon config directory. XDG_CONFIG_HOME wins when
// it is absolute, then the OS default, then ~/.config.
func ConfigRoot() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && filepath.IsAbs(xdg) {
		return filepath.Join(xdg, appName), nil
	}

	root, err := os.UserConfigDir()
	if err == nil && root != "" {
		return filepath.Join(root, appName), nil
	}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil && home != "" {
		return filepath.Join(home, ".config", appName), nil
	}

	if err != nil {
		return "", err
	}

	return "", fmt.Errorf("resolve user home directory")
}

// ConfigFile returns the path of the YAML config file.
func ConfigFile() (string, error) {
	root, err := ConfigRoot()
	if err != nil {
		return "", err
	}

	return filepath.Join(root, "config.yaml"), nil
}

// LogsDir returns the default log directory.
func LogsDir() (string, error) {
	root, err := ConfigRoot()
	if err != nil {
		return "", err
	}

	return filepath.Join(root, "logs"), nil
}

// DefaultLogFile returns the log file used while the console owns the terminal.
func DefaultLogFile() (string, error) {
	logsDir, err := LogsDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(logsDir, "capcon.log"), nil
}
