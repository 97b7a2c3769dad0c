package target

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/stitch/internal/assemble"
	"github.com/roach88/stitch/internal/command"
	"github.com/roach88/stitch/internal/graph"
	"github.com/roach88/stitch/internal/runner"
	"github.com/roach88/stitch/internal/stencil"
)

// Target compiles graphs into one memory region and executes them.
type Target struct {
	id     uuid.UUID
	db     *stencil.Database
	mem    runner.Memory
	runner *runner.Runner
	logger *slog.Logger

	mu     sync.Mutex
	result *assemble.Result
}

// Option configures a Target.
type Option func(*Target)

// WithLogger sets the logger for compile and run events.
func WithLogger(l *slog.Logger) Option {
	return func(t *Target) {
		t.logger = l
	}
}

// WithID overrides the generated handle ID.
func WithID(id uuid.UUID) Option {
	return func(t *Target) {
		t.id = id
	}
}

// New creates a Target compiling against db and executing in mem.
// The memory's byte order must match the stencil object's.
func New(db *stencil.Database, mem runner.Memory, opts ...Option) (*Target, error) {
	if db.ByteOrder() != mem.ByteOrder() {
		return nil, fmt.Errorf("stencil object is %s but memory is %s", db.ByteOrder(), mem.ByteOrder())
	}
	t := &Target{
		id:     uuid.New(),
		db:     db,
		mem:    mem,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("target", t.id.String())
	t.runner = runner.New(mem, runner.WithLogger(t.logger))
	return t, nil
}

// ID returns the handle ID.
func (t *Target) ID() uuid.UUID { return t.id }

// Database returns the stencil database the target compiles against.
func (t *Target) Database() *stencil.Database { return t.db }

// Compile stores every output net, assembles the graph and loads the
// program into the target's memory, replacing any previous program.
// The store nodes are added to a copy, so g is not modified. Nothing is
// sent to the runtime if assembly fails.
func (t *Target) Compile(g *graph.Graph, outputs ...graph.NetID) (*assemble.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g = g.Clone()
	roots := make([]graph.NodeID, 0, len(outputs))
	for _, net := range outputs {
		root, err := g.Store(net)
		if err != nil {
			return nil, fmt.Errorf("compile: %w", err)
		}
		roots = append(roots, root)
	}

	res, err := assemble.Assemble(t.db, g, roots, assemble.WithLogger(t.logger))
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	w := command.NewWriter(t.db.ByteOrder())
	w.EndCom()
	if _, err := t.runner.Execute(append(res.Stream, w.Bytes()...)); err != nil {
		t.result = nil
		return nil, fmt.Errorf("compile: load program: %w", err)
	}

	t.result = res
	t.logger.Info("compiled program",
		"steps", len(res.Plan.Steps),
		"heap_nets", len(res.Variables),
		"code_size", res.Layout.CodeSize,
		"data_size", res.Layout.DataSize)
	return res, nil
}

// Load replays a previously assembled stream, such as a cached artifact,
// into the target's memory. vars is the heap layout the stream was
// assembled with.
func (t *Target) Load(stream []byte, vars map[graph.NetID]assemble.Variable) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := command.NewWriter(t.db.ByteOrder())
	w.EndCom()
	if _, err := t.runner.Execute(append(slices.Clone(stream), w.Bytes()...)); err != nil {
		t.result = nil
		return fmt.Errorf("load: %w", err)
	}
	t.result = &assemble.Result{
		Stream:    stream,
		Order:     t.db.ByteOrder(),
		Variables: maps.Clone(vars),
	}
	t.logger.Info("loaded program", "heap_nets", len(vars), "stream_bytes", len(stream))
	return nil
}

// Run executes the compiled program once.
func (t *Target) Run() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.result == nil {
		return ErrNotCompiled
	}
	w := command.NewWriter(t.db.ByteOrder())
	w.RunProg()
	w.EndCom()
	if _, err := t.runner.Execute(w.Bytes()); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	t.logger.Debug("program executed")
	return nil
}

func (t *Target) variable(net graph.NetID) (assemble.Variable, error) {
	if t.result == nil {
		return assemble.Variable{}, &ValueNotCompiledError{Net: net}
	}
	v, ok := t.result.Variables[net]
	if !ok {
		return assemble.Variable{}, &ValueNotCompiledError{Net: net}
	}
	return v, nil
}

// ReadValue reads a heap net back from the runtime.
func (t *Target) ReadValue(net graph.NetID) (graph.Literal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.variable(net)
	if err != nil {
		return graph.Literal{}, err
	}
	w := command.NewWriter(t.db.ByteOrder())
	w.ReadData(v.Offset, v.Size)
	w.EndCom()
	out, err := t.runner.Execute(w.Bytes())
	if err != nil {
		return graph.Literal{}, fmt.Errorf("read net %d: %w", net, err)
	}
	if len(out) != 1 {
		return graph.Literal{}, fmt.Errorf("read net %d: runtime returned %d readouts", net, len(out))
	}
	return graph.DecodeLiteral(v.Dtype, out[0].Data, t.db.ByteOrder())
}

// WriteValue overwrites a heap net. Ints are accepted for float nets;
// other dtype mismatches are errors.
func (t *Target) WriteValue(net graph.NetID, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.variable(net)
	if err != nil {
		return err
	}
	lit, err := graph.LiteralOf(value)
	if err != nil {
		return fmt.Errorf("write net %d: %w", net, err)
	}
	switch {
	case lit.Dtype == v.Dtype:
	case v.Dtype == graph.Float && lit.Dtype == graph.Int:
		lit = graph.Literal{Dtype: graph.Float, F: float64(lit.I)}
	case v.Dtype.StencilName() == lit.Dtype.StencilName():
		lit.Dtype = v.Dtype
	default:
		return fmt.Errorf("write net %d: cannot store %s into %s", net, lit.Dtype, v.Dtype)
	}
	cell, err := lit.Encode(int(v.Size), t.db.ByteOrder())
	if err != nil {
		return fmt.Errorf("write net %d: %w", net, err)
	}
	w := command.NewWriter(t.db.ByteOrder())
	w.CopyData(v.Offset, cell)
	w.EndCom()
	if _, err := t.runner.Execute(w.Bytes()); err != nil {
		return fmt.Errorf("write net %d: %w", net, err)
	}
	return nil
}

// Result returns the last assembled program, or nil.
func (t *Target) Result() *assemble.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Variables returns the heap layout of the last compile.
func (t *Target) Variables() map[graph.NetID]assemble.Variable {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result == nil {
		return nil
	}
	return maps.Clone(t.result.Variables)
}

// Close frees the target's memory.
func (t *Target) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result = nil
	return t.mem.Free()
}
