package config

import (
	"fmt"
	"sync/atomic"
)

// current holds the process-wide configuration. Readers take a snapshot
// pointer; a reload swaps the whole struct rather than mutating it in
// place, so a held snapshot stays internally consistent.
var current atomic.Pointer[Config]

// Initialize loads configuration from path (with environment overrides)
// and installs it as the process-wide configuration. Calling it again
// after a successful load is a no-op.
func Initialize(path string) error {
	if current.Load() != nil {
		return nil
	}
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return err
	}
	current.CompareAndSwap(nil, cfg)
	return nil
}

// GetConfig returns the process-wide configuration, or nil before
// Initialize has succeeded. The returned struct must be treated as
// read-only; use ReloadConfig to change it.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig installs cfg as the process-wide configuration. Intended
// for tests that need a known configuration without a file on disk.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// ReloadConfig re-reads the file at path and swaps in the result. On
// any load or validation error the previous configuration stays
// installed.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	current.Store(cfg)
	return nil
}

// MustGetConfig returns the process-wide configuration and panics when
// Initialize has not run. For use after startup has already succeeded.
func MustGetConfig() *Config {
	cfg := current.Load()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}
