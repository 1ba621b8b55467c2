package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/buildflow/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadRules_Defaults(t *testing.T) {
	loaded, err := LoadRules("")

	require.NoError(t, err)
	assert.Len(t, loaded, len(rules.DefaultRules()))
}

func TestLoadRules_AppliesOverrides(t *testing.T) {
	path := writeConfig(t, `
rules:
  task_assignee:
    disabled: true
  sequential_stage:
    priority: critical
`)

	loaded, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	byName := make(map[string]rules.Rule)
	for _, rule := range loaded {
		byName[rule.Name()] = rule
	}

	assert.NotContains(t, byName, "task_assignee")
	assert.Equal(t, rules.PriorityCritical, byName["sequential_stage"].Priority())
	assert.Equal(t, rules.PriorityHigh, byName["parent_in_progress"].Priority())
}

func TestLoadRules_Errors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadRules(writeConfig(t, "rules: [not, a, map]"))
	require.Error(t, err)

	_, err = LoadRules(writeConfig(t, "rules:\n  no_such_rule:\n    disabled: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_rule")

	_, err = LoadRules(writeConfig(t, "rules:\n  sequential_stage:\n    priority: urgent\n"))
	require.Error(t, err)
}
