// Package config provides configuration loading for the workflow rules
package config

import (
	"fmt"
	"os"

	"github.com/dukex/buildflow/pkg/rules"
	"gopkg.in/yaml.v3"
)

// RulesConfigFile represents the structure of the rules.yaml file
type RulesConfigFile struct {
	Rules map[string]rules.Override `yaml:"rules"`
}

// LoadRulesConfig loads rule overrides from a YAML file
func LoadRulesConfig(filepath string) (RulesConfigFile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return RulesConfigFile{}, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile RulesConfigFile
	if err := yaml.Unmarshal(data, &configFile); err != nil {
		return RulesConfigFile{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return configFile, nil
}

// LoadRules returns the built-in rules with the overrides of filepath applied. An empty
// filepath returns the built-in rules unchanged.
func LoadRules(filepath string) ([]rules.Rule, error) {
	if filepath == "" {
		return rules.DefaultRules(), nil
	}

	configFile, err := LoadRulesConfig(filepath)
	if err != nil {
		return nil, err
	}

	configured, err := rules.Apply(rules.DefaultRules(), configFile.Rules)
	if err != nil {
		return nil, fmt.Errorf("invalid rules configuration in %s: %w", filepath, err)
	}

	return configured, nil
}
