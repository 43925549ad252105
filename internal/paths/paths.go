// Package paths resolves the configuration and data directories used by the
// rowstore command.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the platform directories.
const AppName = "rowstore"

// ProjectConfigDirName is the project-local configuration directory. When it
// exists in the working directory it takes precedence over the platform
// default.
const ProjectConfigDirName = ".rowstore"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "ROWSTORE_CONFIG_DIR"
	EnvDataDir   = "ROWSTORE_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// DefaultConfigDir returns the platform-specific configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/rowstore (fallback ~/.config/rowstore)
// macOS:   ~/Library/Application Support/rowstore
// Windows: %APPDATA%/rowstore
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > ROWSTORE_CONFIG_DIR > ./.rowstore (when present)
// > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	local := filepath.Join(cwd, ProjectConfigDirName)
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local, nil
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the directory that relative row source and database
// paths are resolved against: flag > data_dir in config.yaml >
// ROWSTORE_DATA_DIR > the working directory.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return platformDir.getwd()
}
