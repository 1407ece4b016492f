// Package appdir locates and creates the Relay data directory, which holds
// the configuration file and the durable session state (the persisted run
// identifier and the recorded transcript).
package appdir

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// DirEnv is the environment variable to override the Relay directory.
	DirEnv = "RELAY_DIR"

	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "config.yaml"

	// RunFileName is the name of the persisted run identifier file.
	RunFileName = "run.json"

	// TranscriptFileName is the name of the recorded transcript file.
	TranscriptFileName = "transcript.json"
)

var (
	// cachedDir stores the resolved directory to avoid repeated lookups.
	cachedDir string
	mu        sync.RWMutex
)

// Dir returns the Relay data directory path, resolved in order:
//  1. RELAY_DIR environment variable
//  2. Platform default:
//     - macOS: ~/Library/Application Support/Relay
//     - Linux: $XDG_DATA_HOME/relay or ~/.local/share/relay
//     - Windows: %APPDATA%\Relay
//
// Dir only resolves the path; use EnsureDir to create it.
func Dir() (string, error) {
	mu.RLock()
	if cachedDir != "" {
		dir := cachedDir
		mu.RUnlock()
		return dir, nil
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if cachedDir != "" {
		return cachedDir, nil
	}

	if env := os.Getenv(DirEnv); env != "" {
		cachedDir = env
		return cachedDir, nil
	}

	dir, err := platformDir()
	if err != nil {
		return "", err
	}
	cachedDir = dir
	return cachedDir, nil
}

// platformDir returns the platform-specific default data directory.
func platformDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "Relay"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to resolve home directory: %w", err)
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Relay"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "relay"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share", "relay"), nil
	}
}

// EnsureDir creates the Relay data directory if it does not exist.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return nil
}

// ConfigFile returns the path of the configuration file.
func ConfigFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// RunFile returns the path of the persisted run identifier file.
func RunFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, RunFileName), nil
}

// TranscriptFile returns the path of the recorded transcript file.
func TranscriptFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, TranscriptFileName), nil
}

// ResetCache clears the cached directory. Intended for tests that change
// the RELAY_DIR environment variable.
func ResetCache() {
	mu.Lock()
	defer mu.Unlock()
	cachedDir = ""
}
