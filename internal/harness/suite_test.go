package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	paths, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.Len(t, paths, 6)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "aux.yaml"), paths[0])
}

func TestRunSuite_AllPass(t *testing.T) {
	paths, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	result := RunSuite(paths)
	assert.Equal(t, 6, result.TotalScenarios)
	assert.Equal(t, 6, result.Passed)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Failures)
}

func TestRunSuite_CollectsFailures(t *testing.T) {
	dir := t.TempDir()
	program, err := filepath.Abs(filepath.Join("testdata", "programs", "example.yaml"))
	require.NoError(t, err)

	wrong := "name: wrong\ndescription: d\nprogram: " + program + "\nexpect: {r: 1}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_wrong.yaml"), []byte(wrong), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_broken.yaml"), []byte("name: [\n"), 0o644))
	missing := "name: missing\ndescription: d\nprogram: absent.yaml\nexpect: {r: 1}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_missing.yaml"), []byte(missing), 0o644))

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	result := RunSuite(paths)

	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 3, result.Failed)
	require.Len(t, result.Failures, 3)
	assert.Equal(t, "wrong", result.Failures[0].ScenarioName)
	assert.Contains(t, result.Failures[0].Error, "expect r")
	assert.Contains(t, result.Failures[1].Error, "failed to load scenario")
	assert.Contains(t, result.Failures[2].Error, "scenario execution failed")
}
