package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleGolden = `{"scenario_name":"example","stats":{"data_size":16,"heap_nets":4,"steps":6},"trace":[{"kind":"compile","name":"example","seq":1},{"kind":"run","seq":2},{"dtype":"float","kind":"read","name":"r","seq":3,"value":"9.22"}]}`

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := execute(t, "test", t.TempDir(), "--format", "json")
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, result.Total)
	assert.Empty(t, result.Scenarios)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := execute(t, "test", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ example")
	assert.Contains(t, out, "✓ division")
	assert.Contains(t, out, "Test Summary: 6 passed, 0 failed, 6 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, "test", filepath.Join("..", "harness", "testdata", "scenarios"), "--filter", "div*", "--format", "json")
	require.NoError(t, err)

	var result TestResult
	decodeResponse(t, out, &result)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "division", result.Scenarios[0].Name)
	assert.True(t, result.Scenarios[0].Pass)
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := execute(t, "test", t.TempDir(), "--filter", "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "example.yaml", exampleProgram)
	writeFile(t, dir, "scenarios/example.yaml", `name: example
description: "(1.11 * 2) + 7 reads back 9.22"
program: ../example.yaml
expect:
  r: 9.22
`)
	scenarios := filepath.Join(dir, "scenarios")
	goldenPath := filepath.Join(scenarios, "golden", "example.golden")

	out, err := execute(t, "test", scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ example (golden updated)")

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Equal(t, exampleGolden, string(data))

	out, err = execute(t, "test", scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"example","trace":[]}`), 0644))
	out, err = execute(t, "test", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ example")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "example.yaml", exampleProgram)
	writeFile(t, dir, "wrong.yaml", `name: wrong
description: "expects the wrong value"
program: example.yaml
expect:
  r: 10
`)

	out, err := execute(t, "test", dir, "--filter", "wrong", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 1)
	assert.NotEmpty(t, result.Scenarios[0].Errors)
}
