package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "stitch", cmd.Use)
	assert.Contains(t, cmd.Long, "copy-and-patch")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "run", "dump", "stencils", "eval", "test", "cache"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	defaults := map[string]string{
		"format":   "text",
		"backend":  BackendVM,
		"order":    "little",
		"stencils": "",
		"arch":     "native",
		"opt":      "O3",
	}
	for name, def := range defaults {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, def, flag.DefValue, name)
	}
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
	assert.NotNil(t, compileCmd.Flags().Lookup("db"))
	assert.NotNil(t, compileCmd.Flags().Lookup("listing"))
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	runsFlag := runCmd.Flags().Lookup("runs")
	require.NotNil(t, runsFlag)
	assert.Equal(t, "1", runsFlag.DefValue)
	assert.NotNil(t, runCmd.Flags().Lookup("set"))
	assert.NotNil(t, runCmd.Flags().Lookup("db"))
}

func TestCacheSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"list", "show", "rm"} {
		sub, _, err := cmd.Find([]string{"cache", name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestInvalidGlobalFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"format", []string{"--format", "xml", "stencils"}, "invalid format"},
		{"backend", []string{"--backend", "gpu", "stencils"}, "invalid backend"},
		{"order", []string{"--order", "middle", "stencils"}, "invalid order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
