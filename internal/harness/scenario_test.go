package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ResolvesProgramPath(t *testing.T) {
	s := loadTestScenario(t, "example")

	assert.Equal(t, "example", s.Name)
	assert.Equal(t, filepath.Join("testdata", "programs", "example.yaml"), s.Program)
	assert.Equal(t, 9.22, s.Expect["r"])
	assert.Len(t, s.Assertions, 7)
	assert.Equal(t, 1, s.runs())
	assert.Equal(t, defaultTolerance, s.tolerance())
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	path := writeScenario(t, `name: x
description: d
program: p.yaml
expect: {a: 1}
`)
	s, err := LoadScenarioWithBasePath(path, "/base")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/base", "p.yaml"), s.Program)
}

func TestLoadScenario_AbsoluteProgramPath(t *testing.T) {
	path := writeScenario(t, `name: x
description: d
program: /abs/p.yaml
expect: {a: 1}
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "/abs/p.yaml", s.Program)
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"unknown field", "name: x\ndescription: d\nprogram: p.yaml\nexpect: {a: 1}\nasserts: []\n", "field asserts not found"},
		{"missing name", "description: d\nprogram: p.yaml\nexpect: {a: 1}\n", "name is required"},
		{"missing description", "name: x\nprogram: p.yaml\nexpect: {a: 1}\n", "description is required"},
		{"missing program", "name: x\ndescription: d\nexpect: {a: 1}\n", "program is required"},
		{"bad order", "name: x\ndescription: d\nprogram: p.yaml\norder: middle\nexpect: {a: 1}\n", "order must be little or big"},
		{"negative runs", "name: x\ndescription: d\nprogram: p.yaml\nruns: -1\nexpect: {a: 1}\n", "runs must not be negative"},
		{"nothing to check", "name: x\ndescription: d\nprogram: p.yaml\n", "needs expect"},
		{"setup without value", "name: x\ndescription: d\nprogram: p.yaml\nsetup: [{write: c}]\nexpect: {a: 1}\n", "setup[0]: value is required"},
		{"unknown assertion", "name: x\ndescription: d\nprogram: p.yaml\nassertions: [{type: bogus}]\n", `unknown assertion type "bogus"`},
		{"dtype without output", "name: x\ndescription: d\nprogram: p.yaml\nassertions: [{type: dtype}]\n", "dtype requires output"},
		{"stream_count without op", "name: x\ndescription: d\nprogram: p.yaml\nassertions: [{type: stream_count}]\n", "stream_count requires op"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}
