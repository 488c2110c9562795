// Package session resolves the on-disk layout under ~/.waview.
package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.waview.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".waview")
}

// SessionDBPath returns the whatsmeow session.db path.
func SessionDBPath() string {
	return filepath.Join(BaseDir(), "session.db")
}

// SnapshotDBPath returns the app-owned snapshot database path.
func SnapshotDBPath() string {
	return filepath.Join(BaseDir(), "snapshots.db")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "waview.log")
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the directory tree with proper permissions.
func EnsureDir() error {
	dirs := []string{
		BaseDir(),
		LogDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
