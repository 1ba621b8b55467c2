package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func runRules(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := &cli.Command{
		Name:     "buildflow",
		Writer:   &out,
		Commands: []*cli.Command{RulesCommand()},
	}

	err := root.Run(t.Context(), append([]string{"buildflow", "rules"}, args...))

	return out.String(), err
}

func TestRulesCommand_Defaults(t *testing.T) {
	out, err := runRules(t)
	require.NoError(t, err)

	assert.Contains(t, out, "sequential_stage")
	assert.Contains(t, out, "active_project")
	assert.Contains(t, out, "task_assignee")
}

func TestRulesCommand_AppliesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  task_assignee:\n    disabled: true\n"), 0o600))

	out, err := runRules(t, "--rules-config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "sequential_stage")
	assert.NotContains(t, out, "task_assignee")
}

func TestRulesCommand_InvalidConfig(t *testing.T) {
	_, err := runRules(t, "--rules-config", filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
}
