// Copyright 2024 dbsnap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config locates the dbsnap configuration directory and loads its
// settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dbsnap/internal/artifacts"
)

// EnvConfigDir overrides the configuration directory.
const EnvConfigDir = "DBSNAP_CONFIG_DIR"

// configDirOverride is set from the --config-dir flag.
var configDirOverride string

// SetConfigDir makes every path in this package resolve under dir. An empty
// dir restores the default lookup.
func SetConfigDir(dir string) {
	configDirOverride = dir
}

// ConfigDir returns the config directory path.
// Uses the --config-dir override, then the DBSNAP_CONFIG_DIR env var if set,
// otherwise defaults to ~/.dbsnap.
// This is computed dynamically to support test isolation.
func ConfigDir() string {
	if configDirOverride != "" {
		return configDirOverride
	}
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dbsnap")
}

// SettingsPath returns the settings file path
func SettingsPath() string {
	return filepath.Join(ConfigDir(), "settings.yaml")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0700)
}

// InitConfigDir creates the config directory and writes the default
// settings file unless one is already there. It reports whether a file was
// written.
func InitConfigDir() (bool, error) {
	if err := EnsureConfigDir(); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	settingsPath := SettingsPath()
	if _, err := os.Stat(settingsPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.WriteFile(settingsPath, artifacts.GlobalSettings, 0600); err != nil {
		return false, fmt.Errorf("failed to create default settings: %w", err)
	}
	return true, nil
}

// Settings represents the contents of settings.yaml
type Settings struct {
	LogLevel    string   `yaml:"log_level"`    // trace, debug, info, warn, error, off (default: warn)
	LogFile     string   `yaml:"log_file"`     // empty = stderr
	SortEntries *bool    `yaml:"sort_entries"` // default: true (pointer to detect missing)
	LockTimeout int      `yaml:"lock_timeout"` // seconds, 0 = single attempt
	Excludes    []string `yaml:"excludes"`
}

// loadDefaultSettings parses default settings from embedded artifact.
func loadDefaultSettings() Settings {
	var settings Settings
	if err := yaml.Unmarshal(artifacts.GlobalSettings, &settings); err != nil {
		panic("failed to parse embedded settings: " + err.Error())
	}
	return settings
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() *Settings {
	settings := loadDefaultSettings()
	return &settings
}

// LoadSettings loads ~/.dbsnap/settings.yaml. Falls back to embedded
// defaults if the file doesn't exist. Keys missing from the file keep their
// default values.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFromPath(SettingsPath())
}

// LoadSettingsFromPath loads settings from a specific file path.
func LoadSettingsFromPath(path string) (*Settings, error) {
	settings := loadDefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &settings, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return &settings, nil
}

var validLogLevels = map[string]bool{
	"": true, "trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true, "off": true,
}

// Validate rejects values no command could use.
func (s *Settings) Validate() error {
	if !validLogLevels[strings.ToLower(s.LogLevel)] {
		return fmt.Errorf("unknown log_level %q", s.LogLevel)
	}
	if s.LockTimeout < 0 {
		return fmt.Errorf("lock_timeout must not be negative, got %d", s.LockTimeout)
	}
	return nil
}

// SortEnabled returns whether entries are walked in name order (defaults to true).
func (s *Settings) SortEnabled() bool {
	if s.SortEntries == nil {
		return true
	}
	return *s.SortEntries
}

// LockWait returns lock_timeout as a duration.
func (s *Settings) LockWait() time.Duration {
	return time.Duration(s.LockTimeout) * time.Second
}
