package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ActionConfig describes an action backed by a local command.
type ActionConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`

	// Outputs lists the variables the command writes, for flow validation.
	Outputs []string `yaml:"outputs" json:"outputs"`
}

// ConfigFile represents the structure of actions.yaml.
type ConfigFile struct {
	Actions []ActionConfig `yaml:"actions" json:"actions"`
}

// LoadActions reads a configuration file (YAML or JSON) and returns the actions by name.
// A missing file means no command actions.
func LoadActions(path string) (map[string]ActionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ActionConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read actions config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	actions := make(map[string]ActionConfig)
	for _, a := range cfg.Actions {
		if a.Name == "" {
			continue
		}
		if a.Command == "" {
			return nil, fmt.Errorf("action %s: command is required", a.Name)
		}
		actions[a.Name] = a
	}
	return actions, nil
}
