package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalMatchesRun(t *testing.T) {
	path := writeFile(t, t.TempDir(), "example.yaml", exampleProgram)

	evalOut, err := execute(t, "eval", path)
	require.NoError(t, err)
	runOut, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Equal(t, "r = 9.22 (float)\n", evalOut)
	assert.Equal(t, runOut, evalOut)
}

func TestEvalJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "div.yaml", `name: div
values:
  - {name: q, op: floordiv, args: [-7, 2]}
outputs: [q]
`)

	out, err := execute(t, "eval", path, "--format", "json")
	require.NoError(t, err)

	var outputs []ValueResult
	decodeResponse(t, out, &outputs)
	require.Len(t, outputs, 1)
	assert.Equal(t, "q", outputs[0].Name)
	assert.Equal(t, "int", outputs[0].Dtype)
	assert.Equal(t, -4.0, outputs[0].Value)
}

func TestEvalUnsupportedOperation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", `name: bad
values:
  - {name: a, op: mod, args: [1.5, 2]}
outputs: [a]
`)

	out, err := execute(t, "eval", path)
	require.Error(t, err)
	assert.Contains(t, out, "Error [E006]")
	assert.Contains(t, out, "not implemented")
}
