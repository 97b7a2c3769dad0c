package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/stitch/internal/ir"
	"github.com/roach88/stitch/internal/program"
	"github.com/roach88/stitch/internal/store"
	"github.com/roach88/stitch/internal/target"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Set      []string
	Runs     int
	Database string
}

// ValueResult is one output read back after execution.
type ValueResult struct {
	Name  string `json:"name"`
	Dtype string `json:"dtype"`
	Value any    `json:"value"`
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Name    string        `json:"name"`
	Runs    int           `json:"runs"`
	Cached  bool          `json:"cached"`
	Key     string        `json:"key,omitempty"`
	Outputs []ValueResult `json:"outputs"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Compile a program, execute it and print its outputs",
		Long: `Compile a program on the selected backend, execute it and read
every output back.

--set overwrites a named value in the heap before execution; only values
that live in the heap (inputs and outputs of the compiled program) can be
set. With --db a cached stream is replayed instead of assembling again.

Examples:
  stitch run example.yaml
  stitch run example.yaml --set c=2.5 --runs 3
  stitch run example.yaml --db stitch.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "write name=value before running (repeatable)")
	cmd.Flags().IntVar(&opts.Runs, "runs", 1, "number of times to execute the program")
	cmd.Flags().StringVar(&opts.Database, "db", "", "reuse and populate this SQLite artifact cache")

	return cmd
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	if opts.Runs < 0 {
		return formatter.Fail(ErrCodeGeneric, fmt.Errorf("--runs must not be negative, got %d", opts.Runs))
	}
	writes := make([]assignment, 0, len(opts.Set))
	for _, s := range opts.Set {
		name, v, err := parseAssignment(s)
		if err != nil {
			return formatter.Fail(ErrCodeGeneric, err)
		}
		writes = append(writes, assignment{name: name, value: v})
	}

	tgt, err := opts.newTarget(logger)
	if err != nil {
		if errors.Is(err, errBackend) {
			return formatter.Fail(ErrCodeBackend, err)
		}
		return formatter.Fail(ErrCodeStencils, err)
	}
	defer tgt.Close()

	prog, err := loadProgram(path, tgt.Database())
	if err != nil {
		return formatter.Fail(programErrorCode(err), err)
	}

	result := RunResult{Name: prog.Name, Runs: opts.Runs}
	if opts.Database != "" {
		key, cached, err := loadOrCompile(cmd.Context(), opts.Database, tgt, prog)
		if err != nil {
			return formatter.Fail(ErrCodeCache, err)
		}
		result.Key, result.Cached = key, cached
		formatter.VerboseLog("Artifact %s (cached: %t)", key, cached)
	} else if _, err := tgt.Compile(prog.Graph, prog.Outputs...); err != nil {
		return formatter.Fail(ErrCodeAssemble, err)
	}

	for _, w := range writes {
		net, ok := prog.Nets[w.name]
		if !ok {
			return formatter.Fail(ErrCodeGeneric, fmt.Errorf("program has no value %q", w.name))
		}
		if err := tgt.WriteValue(net, w.value); err != nil {
			return formatter.Fail(ErrCodeRuntime, err)
		}
	}

	for i := 0; i < opts.Runs; i++ {
		if err := tgt.Run(); err != nil {
			return formatter.Fail(ErrCodeRuntime, err)
		}
	}

	for i, net := range prog.Outputs {
		lit, err := tgt.ReadValue(net)
		if err != nil {
			return formatter.Fail(ErrCodeRuntime, err)
		}
		result.Outputs = append(result.Outputs, ValueResult{
			Name:  prog.OutputNames[i],
			Dtype: lit.Dtype.String(),
			Value: lit.Value(),
		})
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	for _, out := range result.Outputs {
		fmt.Fprintf(formatter.Writer, "%s = %s (%s)\n", out.Name, displayValue(out.Value), out.Dtype)
	}
	return nil
}

type assignment struct {
	name  string
	value any
}

// loadOrCompile replays the cached stream for prog when one exists and
// otherwise compiles prog and stores the result.
func loadOrCompile(ctx context.Context, path string, tgt *target.Target, prog *program.Program) (string, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	g, roots, err := prog.Roots()
	if err != nil {
		return "", false, err
	}
	graphHash, err := g.Digest(roots)
	if err != nil {
		return "", false, err
	}
	key, err := ir.ArtifactKey(graphHash, tgt.Database().Digest())
	if err != nil {
		return "", false, err
	}

	st, err := store.Open(path)
	if err != nil {
		return "", false, err
	}
	defer st.Close()

	a, err := st.GetArtifact(ctx, key)
	switch {
	case err == nil:
		if err := tgt.Load(a.Stream, a.Variables); err != nil {
			return "", false, err
		}
		return key, true, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", false, err
	}

	res, err := tgt.Compile(prog.Graph, prog.Outputs...)
	if err != nil {
		return "", false, err
	}
	outputs := make([]store.Output, len(prog.Outputs))
	for i, net := range prog.Outputs {
		outputs[i] = store.Output{Name: prog.OutputNames[i], Net: net}
	}
	a, err = store.NewArtifact(prog.Name, graphHash, tgt.Database(), res, outputs)
	if err != nil {
		return "", false, err
	}
	if _, err := st.PutArtifact(ctx, a); err != nil {
		return "", false, err
	}
	return key, false, nil
}

// displayValue prints floats at single precision, the width of a heap cell.
func displayValue(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'g', -1, 32)
	}
	return fmt.Sprint(v)
}
