package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied by Load when the file is absent or a field is unset.
const (
	DefaultPersistIntervalSeconds  = 15
	DefaultReconnectBackoffSeconds = 5
)

// Config represents ~/.waview/config.toml.
type Config struct {
	// PersistIntervalSeconds is how often the snapshot scheduler writes
	// state to disk.
	PersistIntervalSeconds int `toml:"persist_interval_seconds"`
	// ReconnectBackoffSeconds is the fixed delay before a reconnect attempt
	// after an unexpected disconnect.
	ReconnectBackoffSeconds int `toml:"reconnect_backoff_seconds"`
	// DownloadDir overrides where opened media files are saved. Empty means
	// the system temp directory.
	DownloadDir string `toml:"download_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PersistIntervalSeconds:  DefaultPersistIntervalSeconds,
		ReconnectBackoffSeconds: DefaultReconnectBackoffSeconds,
	}
}

// Load reads config from the given path. A missing file yields the defaults;
// unset fields are filled in from them.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	if cfg.PersistIntervalSeconds <= 0 {
		cfg.PersistIntervalSeconds = DefaultPersistIntervalSeconds
	}
	if cfg.ReconnectBackoffSeconds <= 0 {
		cfg.ReconnectBackoffSeconds = DefaultReconnectBackoffSeconds
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
