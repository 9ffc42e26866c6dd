package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSettingsFile is the settings file used when VISAGEVAULT_SETTINGS is unset.
const DefaultSettingsFile = "visagevault.yaml"

// Settings holds the user-editable preferences persisted between runs.
type Settings struct {
	PhotoDirectory  string   `yaml:"photo_directory,omitempty"`
	ThumbnailSize   int      `yaml:"thumbnail_size,omitempty"`
	PhotoExtensions []string `yaml:"photo_extensions,omitempty"`
	VideoExtensions []string `yaml:"video_extensions,omitempty"`
}

// LoadSettings reads the settings file. A missing file returns empty settings
// and no error; a corrupt file returns empty settings and the parse error.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("settings file %s is corrupt, using defaults: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes the settings file atomically.
func SaveSettings(path string, s Settings) error {
	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// UpdateSettings loads the settings file, applies fn and saves the result.
func UpdateSettings(path string, fn func(*Settings)) error {
	s, err := LoadSettings(path)
	if err != nil {
		return err
	}
	fn(&s)
	return SaveSettings(path, s)
}
