// Package paths resolves the configuration and data locations of larder.
//
// Precedence for the configuration directory: --config-dir flag, then
// LARDER_CONFIG_DIR, then the platform configuration directory. For the data
// directory: --data-dir flag, then backing.path's directory from
// config.yaml, then LARDER_DATA_DIR, then .larder-db under the working
// directory.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories.
const AppName = "larder"

// Working-directory-relative default data directory.
const DefaultDataDirName = ".larder-db"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "LARDER_CONFIG_DIR"
	EnvDataDir   = "LARDER_DATA_DIR"
)

// File names inside the data directory.
const (
	DocumentFile = "repository.json"
	DatabaseFile = "larder.db"
	AuditFile    = "audit.jsonl"
	LogFile      = "larder.log"
	MetricsFile  = "larder.prom"
)

// platform holds the OS lookups; tests replace them.
var platform = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// userDir returns the per-user directory for larder. On Linux it honours
// xdgVar and falls back to home/linuxFallback; elsewhere it uses
// os.UserConfigDir.
func userDir(xdgVar string, linuxFallback ...string) (string, error) {
	if platform.goos == "linux" {
		if xdg := os.Getenv(xdgVar); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platform.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(append(append([]string{home}, linuxFallback...), AppName)...), nil
	}
	dir, err := platform.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultConfigDir returns the platform configuration directory:
// $XDG_CONFIG_HOME/larder or ~/.config/larder on Linux,
// os.UserConfigDir()/larder elsewhere.
func DefaultConfigDir() (string, error) {
	return userDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory:
// $XDG_DATA_HOME/larder or ~/.local/share/larder on Linux,
// os.UserConfigDir()/larder elsewhere.
func DefaultDataDir() (string, error) {
	return userDir("XDG_DATA_HOME", ".local", "share")
}

// ResolveConfigDir applies flag > LARDER_CONFIG_DIR > DefaultConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir applies flag > configured > LARDER_DATA_DIR >
// ./.larder-db.
func ResolveDataDir(flag, configured string) (string, error) {
	for _, dir := range []string{flag, configured, os.Getenv(EnvDataDir)} {
		if dir != "" {
			return filepath.Abs(dir)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// DocumentPath returns the default location of the repository document for
// a backing driver: larder.db for sqlite, repository.json otherwise.
func DocumentPath(dataDir, driver string) string {
	if driver == "sqlite" {
		return filepath.Join(dataDir, DatabaseFile)
	}
	return filepath.Join(dataDir, DocumentFile)
}
