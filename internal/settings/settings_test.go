package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singerbj/ember-mug/internal/settings"
)

func TestNewAppliesDefaults(t *testing.T) {
	s := settings.New()

	assert.Equal(t, "celsius", s.TemperatureUnit)
	assert.Equal(t, 55.0, s.LastTargetTemp)
	assert.Equal(t, settings.Color{R: 255, G: 140, B: 0, A: 255}, s.Color)

	require.Len(t, s.Presets, 2)
	assert.Equal(t, "tea", s.Presets[0].Name)
	assert.Equal(t, 58.0, s.Presets[0].Celsius)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := settings.Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 55.0, s.LastTargetTemp)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embermug", "config.yaml")

	s := settings.New()
	s.TemperatureUnit = "fahrenheit"
	s.LastTargetTemp = 58.5
	s.Color = settings.Color{R: 1, G: 2, B: 3, A: 4}
	s.Presets = append(s.Presets, settings.Preset{Name: "cocoa", Celsius: 60.0})

	require.NoError(t, s.Save(path))

	loaded, err := settings.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fahrenheit", loaded.TemperatureUnit)
	assert.Equal(t, 58.5, loaded.LastTargetTemp)
	assert.Equal(t, settings.Color{R: 1, G: 2, B: 3, A: 4}, loaded.Color)

	p, ok := loaded.Preset("cocoa")
	require.True(t, ok)
	assert.Equal(t, 60.0, p.Celsius)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("::: not yaml {"), 0o644))

	_, err := settings.Load(path)
	assert.Error(t, err)
}

func TestPresetLookup(t *testing.T) {
	s := settings.New()

	p, ok := s.Preset("coffee")
	require.True(t, ok)
	assert.Equal(t, 55.0, p.Celsius)

	_, ok = s.Preset("soup")
	assert.False(t, ok)
}
