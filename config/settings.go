package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SettingsSnapshot is what gets persisted between runs: the config plus
// a version counter and timestamp.
type SettingsSnapshot struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Config    *Config   `json:"config"`
}

// SettingsStore persists dashboard settings to a local JSON file so that
// runtime tweaks (poll interval, stop-loss slider position) survive restarts.
type SettingsStore struct {
	path    string
	version int
}

// NewSettingsStore creates a store backed by the given file path.
// The file does not need to exist yet.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Load reads the persisted snapshot. If the file does not exist, it
// returns (nil, nil) so the caller can fall back to env/defaults.
func (s *SettingsStore) Load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var snap SettingsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	if snap.Config == nil {
		return nil, fmt.Errorf("settings file has no config")
	}

	s.version = snap.Version
	return snap.Config, nil
}

// Save writes the config to the settings file, bumping the version.
// The write goes through a temp file and rename so a crash mid-write
// cannot corrupt the previous snapshot.
func (s *SettingsStore) Save(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cannot save nil config")
	}

	s.version++
	snap := SettingsSnapshot{
		Version:   s.version,
		UpdatedAt: time.Now().UTC(),
		Config:    cfg.Clone(),
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

// Version returns the version of the last loaded or saved snapshot.
func (s *SettingsStore) Version() int {
	return s.version
}
