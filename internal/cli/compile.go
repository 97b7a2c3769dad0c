package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/stitch/internal/assemble"
	"github.com/roach88/stitch/internal/command"
	"github.com/roach88/stitch/internal/program"
	"github.com/roach88/stitch/internal/stencil"
	"github.com/roach88/stitch/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // stream output path
	Database string // artifact cache path
	Listing  bool
}

// CompileSummary describes an assembled program.
type CompileSummary struct {
	Name        string   `json:"name"`
	Outputs     []string `json:"outputs"`
	Steps       int      `json:"steps"`
	Spills      int      `json:"spills"`
	HeapNets    int      `json:"heap_nets"`
	CodeSize    uint32   `json:"code_size"`
	DataSize    uint32   `json:"data_size"`
	EntryOffset uint32   `json:"entry_offset"`
	Records     int      `json:"records"`
	Patches     int      `json:"patches"`
	StreamBytes int      `json:"stream_bytes"`
	GraphHash   string   `json:"graph_hash"`
	Stencils    string   `json:"stencils"`
	Key         string   `json:"key,omitempty"`
	Output      string   `json:"output,omitempty"`
	Listing     string   `json:"listing,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <program>",
		Short: "Assemble a program into a command stream",
		Long: `Assemble a CUE or YAML program into a command stream.

The stream is unterminated: a runtime appends RUN_PROG, READ_DATA and
END_COM records as needed. With --db the stream is also stored in the
artifact cache, keyed by the graph hash and the stencil object hash.

Examples:
  stitch compile example.yaml
  stitch compile example.cue -o example.bin --listing
  stitch compile example.yaml --db stitch.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the command stream to this file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store the artifact in this SQLite cache")
	cmd.Flags().BoolVar(&opts.Listing, "listing", false, "include the command listing")

	return cmd
}

// compiled is an assembled program with its cache identity.
type compiled struct {
	prog      *program.Program
	db        *stencil.Database
	res       *assemble.Result
	graphHash string
}

// assembleProgram loads, builds and assembles a program without
// executing it.
func assembleProgram(opts *RootOptions, path string, cmd *cobra.Command) (*compiled, string, error) {
	logger := opts.logger(cmd.ErrOrStderr())
	db, err := opts.database(logger)
	if err != nil {
		return nil, ErrCodeStencils, err
	}
	prog, err := loadProgram(path, db)
	if err != nil {
		return nil, programErrorCode(err), err
	}
	g, roots, err := prog.Roots()
	if err != nil {
		return nil, ErrCodeBuildFailed, err
	}
	hash, err := g.Digest(roots)
	if err != nil {
		return nil, ErrCodeGeneric, err
	}
	res, err := assemble.Assemble(db, g, roots, assemble.WithLogger(logger))
	if err != nil {
		return nil, ErrCodeAssemble, err
	}
	return &compiled{prog: prog, db: db, res: res, graphHash: hash}, "", nil
}

func programErrorCode(err error) string {
	if errors.Is(err, os.ErrNotExist) {
		return ErrCodeNotFound
	}
	return ErrCodeBuildFailed
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	c, code, err := assembleProgram(opts.RootOptions, path, cmd)
	if err != nil {
		return formatter.Fail(code, err)
	}
	formatter.VerboseLog("Assembled %s: %d steps, %d records", c.prog.Name, len(c.res.Plan.Steps), len(c.res.Records))

	summary := CompileSummary{
		Name:        c.prog.Name,
		Outputs:     c.prog.OutputNames,
		Steps:       len(c.res.Plan.Steps),
		Spills:      c.res.Plan.Stats().Spills,
		HeapNets:    len(c.res.Plan.HeapNets),
		CodeSize:    c.res.Layout.CodeSize,
		DataSize:    c.res.Layout.DataSize,
		EntryOffset: c.res.EntryOffset,
		Records:     len(c.res.Records),
		Patches:     len(c.res.Patches),
		StreamBytes: len(c.res.Stream),
		GraphHash:   c.graphHash,
		Stencils:    c.db.Digest(),
	}
	if opts.Listing {
		summary.Listing = command.Listing(c.res.Records)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, c.res.Stream, 0644); err != nil {
			return formatter.Fail(ErrCodeWriteFailed, fmt.Errorf("writing stream: %w", err))
		}
		summary.Output = opts.Output
	}

	if opts.Database != "" {
		key, err := cacheArtifact(cmd.Context(), opts.Database, c)
		if err != nil {
			return formatter.Fail(ErrCodeCache, err)
		}
		summary.Key = key
		formatter.VerboseLog("Cached artifact %s", key)
	}

	if opts.Format == "json" {
		return formatter.Success(summary)
	}
	return outputCompileText(formatter, summary)
}

// cacheArtifact stores the compiled program and returns its key.
func cacheArtifact(ctx context.Context, path string, c *compiled) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	outputs := make([]store.Output, len(c.prog.Outputs))
	for i, net := range c.prog.Outputs {
		outputs[i] = store.Output{Name: c.prog.OutputNames[i], Net: net}
	}
	a, err := store.NewArtifact(c.prog.Name, c.graphHash, c.db, c.res, outputs)
	if err != nil {
		return "", err
	}
	if _, err := st.PutArtifact(ctx, a); err != nil {
		return "", err
	}
	return a.Key, nil
}

func outputCompileText(formatter *OutputFormatter, s CompileSummary) error {
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Assembled %s\n", s.Name)
	fmt.Fprintf(w, "  Steps:    %d (%d spills)\n", s.Steps, s.Spills)
	fmt.Fprintf(w, "  Heap:     %d nets, %d bytes\n", s.HeapNets, s.DataSize)
	fmt.Fprintf(w, "  Code:     %d bytes, entry at %#x\n", s.CodeSize, s.EntryOffset)
	fmt.Fprintf(w, "  Stream:   %d records, %d patches, %d bytes\n", s.Records, s.Patches, s.StreamBytes)
	if s.Output != "" {
		fmt.Fprintf(w, "Wrote command stream to %s\n", s.Output)
	}
	if s.Key != "" {
		fmt.Fprintf(w, "Cached as %s\n", s.Key)
	}
	if s.Listing != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, s.Listing)
	}
	return nil
}
