package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads indicator definitions from a YAML file and returns the
// validated registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file %s: %w", path, err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry file %s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes a YAML list of indicator entries and validates it.
func Parse(data []byte) (*Registry, error) {
	var defs []*Indicator
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse registry YAML: %w", err)
	}
	if len(defs) == 0 {
		return nil, &ConfigError{Reason: "registry YAML must be a non-empty list of indicator entries"}
	}
	return New(defs)
}
