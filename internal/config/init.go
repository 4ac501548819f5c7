package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ResistanceIsUseless/proxyjudge/internal/errors"
)

const appDir = "proxyjudge"

// GetUserConfigPath returns the path to the user's config file
// following XDG Base Directory specification
func GetUserConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appDir, "config.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "proxyjudge.yaml"
	}

	return filepath.Join(homeDir, ".config", appDir, "config.yaml")
}

// GetUserConfigDir returns the user's config directory
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

const configHeader = `# ProxyJudge configuration
#
# Command-line flags override these values for a single run.
# With hot reload enabled, edits apply from the next scan on.

`

// InitializeUserConfig writes the default configuration to the user config
// path unless a file already exists there. It returns the path and whether
// a file was created.
func InitializeUserConfig() (string, bool, error) {
	configPath := GetUserConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return configPath, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return "", false, errors.NewFileError(errors.ErrorFileWriteFailed, "failed to create config directory", configPath, err)
	}

	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return "", false, errors.NewConfigError(errors.ErrorConfigInvalid, "failed to marshal default config", err)
	}

	if err := os.WriteFile(configPath, append([]byte(configHeader), data...), 0644); err != nil {
		return "", false, errors.NewFileError(errors.ErrorFileWriteFailed, "failed to write config file", configPath, err)
	}

	return configPath, true, nil
}

// GetConfigPath determines the config file to use.
// Priority: 1. CLI flag, 2. user config. An empty result means run on defaults.
func GetConfigPath(cliPath string) string {
	if cliPath != "" {
		return cliPath
	}

	userConfig := GetUserConfigPath()
	if _, err := os.Stat(userConfig); err == nil {
		return userConfig
	}

	return ""
}
