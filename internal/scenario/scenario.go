// Package scenario loads what-if scenarios from JSON, YAML or HCL files.
package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matsen/metakg/internal/simulate"
)

// ErrUnsupportedFormat is returned for files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported scenario format")

// Load reads the scenarios in path, choosing the decoder by extension
// (.json, .yaml, .yml, .hcl). JSON and YAML files hold one scenario object
// or a list of them. Every scenario is validated.
func Load(path string) ([]simulate.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var out []simulate.Scenario
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		out, err = decodeJSON(data)
	case ".yaml", ".yml":
		out, err = decodeYAML(data)
	case ".hcl":
		out, err = decodeHCL(data, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w: no scenarios", path, simulate.ErrInvalidConfig)
	}
	for _, s := range out {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return out, nil
}

// Select returns the scenario called name, or the only one when name is empty.
func Select(scenarios []simulate.Scenario, name string) (simulate.Scenario, error) {
	if name == "" {
		if len(scenarios) == 1 {
			return scenarios[0], nil
		}
		return simulate.Scenario{}, fmt.Errorf("%w: %d scenarios in file, choose one by name", simulate.ErrInvalidConfig, len(scenarios))
	}
	for _, s := range scenarios {
		if s.Name == name {
			return s, nil
		}
	}
	return simulate.Scenario{}, fmt.Errorf("%w: no scenario named %q", simulate.ErrInvalidConfig, name)
}

func decodeJSON(data []byte) ([]simulate.Scenario, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []simulate.Scenario
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var one simulate.Scenario
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []simulate.Scenario{one}, nil
}

func decodeYAML(data []byte) ([]simulate.Scenario, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var list []simulate.Scenario
		if err := node.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var one simulate.Scenario
	if err := node.Decode(&one); err != nil {
		return nil, err
	}
	return []simulate.Scenario{one}, nil
}
