package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// HistoryDirName is the default name of the private history root in the home directory.
const HistoryDirName = ".local-history"

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - LH_CONFIG_PATH: config file location (default: ~/.config/lh.toml)
//   - LH_HOME: base directory for lh data (default: ~/.local/share/lh)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	return map[string]string{
		"config_path":  configPath,
		"base_dir":     baseDir,
		"log_dir":      filepath.Join(baseDir, "log"),
		"history_root": filepath.Join(homeDir, HistoryDirName),
	}, nil
}

// getConfigPath returns the config file path, checking LH_CONFIG_PATH env var first,
// then falling back to the default ~/.config/lh.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("LH_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "lh.toml"), nil
}

// getBaseDir returns the base directory for lh data, checking LH_HOME env var first,
// then falling back to the XDG default ~/.local/share/lh.
func getBaseDir() (string, error) {
	if path := os.Getenv("LH_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "lh"), nil
}
