package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Preset describes a named configuration in presets.yaml.
// Zero-valued fields are "not set" and leave the corresponding flag default alone.
type Preset struct {
	Description string  `yaml:"description"`
	NCells      int     `yaml:"n_cells"`
	NGenes      int     `yaml:"n_genes"`
	Prob        float64 `yaml:"prob"`
	Seed        int64   `yaml:"seed"`
	Resolution  int     `yaml:"resolution"`
	ChunkSize   int     `yaml:"chunk_size"`
}

// PresetsConfig represents the full presets.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type PresetsConfig struct {
	Version string            `yaml:"version"`
	Presets map[string]Preset `yaml:"presets"`
}

// loadPresetsConfig parses a presets file. Unknown fields are errors so that
// a typo never silently falls back to a default.
func loadPresetsConfig(path string) (PresetsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PresetsConfig{}, fmt.Errorf("reading presets file: %w", err)
	}
	var cfg PresetsConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return PresetsConfig{}, fmt.Errorf("parsing presets file %s: %w", path, err)
	}
	return cfg, nil
}

// GetPreset returns the named preset from the presets file at path.
func GetPreset(path, name string) (Preset, error) {
	cfg, err := loadPresetsConfig(path)
	if err != nil {
		return Preset{}, err
	}
	p, ok := cfg.Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("preset %q not found in %s (known: %v)", name, path, presetNames(cfg))
	}
	return p, nil
}

func presetNames(cfg PresetsConfig) []string {
	names := make([]string, 0, len(cfg.Presets))
	for name := range cfg.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
