package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const profileFileName = ".clinicctl.yaml"

// Profile is the persisted CLI configuration.
type Profile struct {
	// BaseURL is the auth API root, e.g. http://localhost:8080
	BaseURL string `yaml:"base_url"`
	// StorePath is the BoltDB file holding the local session
	StorePath string `yaml:"store_path"`
	// Timeout bounds every HTTP request
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is a zerolog level name
	LogLevel string `yaml:"log_level"`
}

func DefaultProfile() *Profile {
	return &Profile{
		BaseURL:   "http://localhost:8080",
		StorePath: filepath.Join(homeDir(), ".clinicctl", "session.db"),
		Timeout:   10 * time.Second,
		LogLevel:  "warn",
	}
}

func defaultProfilePath() string {
	return filepath.Join(homeDir(), profileFileName)
}

// LoadProfile reads path over the defaults. A missing file is not an error.
func LoadProfile(path string) (*Profile, error) {
	profile := DefaultProfile()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return profile, profile.Validate()
}

func (p *Profile) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if p.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// SaveToFile writes the profile as YAML, creating the parent directory.
func (p *Profile) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
