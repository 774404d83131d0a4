// Package settings persists user preferences: temperature presets, preferred
// unit and LED color, and the last chosen target temperature. The protocol
// client only consumes the last target as a connect-time default; everything
// else belongs to the UI layer.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// Preset is a named target temperature.
type Preset struct {
	Name    string  `yaml:"name"`
	Celsius float64 `yaml:"celsius"`
}

// Color is the preferred LED color.
type Color struct {
	R uint8 `yaml:"r" default:"255"`
	G uint8 `yaml:"g" default:"140"`
	B uint8 `yaml:"b" default:"0"`
	A uint8 `yaml:"a" default:"255"`
}

// Settings is the persisted preference file.
type Settings struct {
	// TemperatureUnit is "celsius" or "fahrenheit".
	TemperatureUnit string `yaml:"temperature_unit" default:"celsius"`

	// LastTargetTemp is the last target the user chose, in °C. Applied as
	// the connect-time default.
	LastTargetTemp float64 `yaml:"last_target_temp" default:"55.0"`

	Color Color `yaml:"color"`

	Presets []Preset `yaml:"presets"`
}

// New returns Settings populated with defaults.
func New() *Settings {
	s := &Settings{}
	defaults.SetDefaults(s)
	if len(s.Presets) == 0 {
		s.Presets = []Preset{
			{Name: "tea", Celsius: 58.0},
			{Name: "coffee", Celsius: 55.0},
		}
	}
	return s
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, "embermug", "config.yaml"), nil
}

// Load reads settings from path. A missing file is not an error: defaults
// are returned so first runs work without any setup.
func Load(path string) (*Settings, error) {
	s := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %q: %w", path, err)
	}
	return s, nil
}

// Save writes settings to path, creating parent directories as needed.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Preset looks a preset up by name.
func (s *Settings) Preset(name string) (Preset, bool) {
	for _, p := range s.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
