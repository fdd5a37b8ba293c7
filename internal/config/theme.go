package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// themeFile is the on-disk layout of a theme: colors live under an "echomail" key so one file
// can carry themes for several tools.
type themeFile struct {
	Echomail *ColorsConfig `yaml:"echomail"`
}

// LoadTheme reads a YAML theme. An empty path returns DefaultColors. Colors missing from the file
// keep their default value.
func LoadTheme(path string) (*ColorsConfig, error) {
	if path == "" {
		return DefaultColors(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme file: %w", err)
	}

	var theme themeFile
	if err := yaml.Unmarshal(data, &theme); err != nil {
		return nil, fmt.Errorf("failed to parse theme file: %w", err)
	}
	if theme.Echomail == nil {
		return nil, fmt.Errorf("invalid theme file %s: missing echomail section", filepath.Base(path))
	}

	theme.Echomail.merge(DefaultColors())
	return theme.Echomail, nil
}

// SaveTheme writes colors as a YAML theme file
func SaveTheme(colors *ColorsConfig, path string) error {
	if colors == nil {
		return fmt.Errorf("theme is nil")
	}
	data, err := yaml.Marshal(themeFile{Echomail: colors})
	if err != nil {
		return fmt.Errorf("failed to marshal theme: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create theme directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
