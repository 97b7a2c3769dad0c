package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stitch/internal/interp"
)

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <program>",
		Short: "Evaluate a program directly from its graph",
		Long: `Evaluate a program directly from its graph without scheduling or
assembly. The result is the reference "stitch run" is checked against.

Examples:
  stitch eval example.yaml
  stitch eval example.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runEval(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	prog, err := loadProgram(path, interp.Catalog{})
	if err != nil {
		return formatter.Fail(programErrorCode(err), err)
	}
	lits, err := interp.Eval(prog.Graph, prog.Outputs...)
	if err != nil {
		return formatter.Fail(ErrCodeRuntime, err)
	}

	outputs := make([]ValueResult, len(lits))
	for i, lit := range lits {
		outputs[i] = ValueResult{Name: prog.OutputNames[i], Dtype: lit.Dtype.String(), Value: lit.Value()}
	}
	if opts.Format == "json" {
		return formatter.Success(outputs)
	}
	for _, out := range outputs {
		fmt.Fprintf(formatter.Writer, "%s = %s (%s)\n", out.Name, displayValue(out.Value), out.Dtype)
	}
	return nil
}
