package harness

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/roach88/stitch/internal/assemble"
	"github.com/roach88/stitch/internal/command"
	"github.com/roach88/stitch/internal/interp"
	"github.com/roach88/stitch/internal/program"
	"github.com/roach88/stitch/internal/runner"
	"github.com/roach88/stitch/internal/stencil"
	"github.com/roach88/stitch/internal/target"
	"github.com/roach88/stitch/internal/testutil"
)

// Harness executes one scenario. It owns the target, the logical clock
// and the ID generator for that run.
type Harness struct {
	scenario *Scenario
	clock    *testutil.SeqClock
	ids      *testutil.FixedIDs
	logger   *slog.Logger
	result   *Result
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger sets the logger passed to the target.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns its result.
//
// Execution flow:
//  1. Build the virtual stencil database in the scenario's byte order
//  2. Load and build the program
//  3. Compile it into a fresh target
//  4. Apply setup writes, then run the program Runs times
//  5. Read every output, check expect and evaluate assertions
//
// An error is returned only for failures outside the scenario's control,
// such as a missing program file. Expectation failures are reported in
// Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scenario: scenario,
		clock:    testutil.NewSeqClock(),
		ids:      testutil.NewFixedIDs(scenario.Name),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:   NewResult(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h.run()
}

func (h *Harness) event(kind, name string) Event {
	return Event{Seq: h.clock.Next(), Kind: kind, Name: name}
}

func (h *Harness) run() (*Result, error) {
	s := h.scenario
	order := s.byteOrder()

	obj, err := interp.StencilObject(order)
	if err != nil {
		return nil, fmt.Errorf("build stencil object: %w", err)
	}
	db, err := stencil.Parse(obj)
	if err != nil {
		return nil, fmt.Errorf("parse stencil object: %w", err)
	}

	mem := runner.NewHeapMemory(order, interp.NewMachine(order, interp.WithMachineLogger(h.logger)), interp.DataBase)
	tgt, err := target.New(db, mem, target.WithID(h.ids.Next()), target.WithLogger(h.logger))
	if err != nil {
		return nil, err
	}
	defer tgt.Close()

	prog, res, err := h.compile(db, tgt)
	if err != nil {
		return h.compileFailed(err)
	}
	if s.ExpectError != "" {
		h.result.AddError(fmt.Sprintf("expected error containing %q, program compiled", s.ExpectError))
		return h.result, nil
	}

	for i, w := range s.Setup {
		net, ok := prog.Nets[w.Write]
		if !ok {
			return nil, fmt.Errorf("setup[%d]: program has no value %q", i, w.Write)
		}
		if err := tgt.WriteValue(net, w.Value); err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
		e := h.event(EventWrite, w.Write)
		e.Value = fmt.Sprint(w.Value)
		h.result.AddEvent(e)
	}

	for i := 0; i < s.runs(); i++ {
		if err := tgt.Run(); err != nil {
			h.result.AddError(fmt.Sprintf("run %d: %v", i+1, err))
			return h.result, nil
		}
		h.result.AddEvent(h.event(EventRun, ""))
	}

	for i, net := range prog.Outputs {
		name := prog.OutputNames[i]
		v, err := tgt.ReadValue(net)
		if err != nil {
			h.result.AddError(fmt.Sprintf("read %s: %v", name, err))
			continue
		}
		h.result.Values[name] = v
		e := h.event(EventRead, name)
		e.Dtype = v.Dtype.String()
		e.Value = formatLiteral(v)
		h.result.AddEvent(e)
	}

	for _, msg := range checkExpect(h.result, s.Expect, s.tolerance()) {
		h.result.AddError(msg)
	}

	actx := &AssertionContext{
		Program:   prog,
		Assembled: res,
		Tolerance: s.tolerance(),
		Writes:    len(s.Setup) > 0,
	}
	for _, msg := range EvaluateAssertions(h.result, s.Assertions, actx) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

// compile loads the program file, builds its graph and compiles it into
// the target.
func (h *Harness) compile(db *stencil.Database, tgt *target.Target) (*program.Program, *assemble.Result, error) {
	spec, err := program.Load(h.scenario.Program)
	if err != nil {
		return nil, nil, err
	}
	prog, err := program.Build(spec, db)
	if err != nil {
		return nil, nil, err
	}
	res, err := tgt.Compile(prog.Graph, prog.Outputs...)
	if err != nil {
		return nil, nil, err
	}

	h.result.Listing = command.Listing(res.Records)
	h.result.Stats = Stats{
		Steps:    len(res.Plan.Steps),
		HeapNets: len(res.Plan.HeapNets),
		CodeSize: res.Layout.CodeSize,
		DataSize: res.Layout.DataSize,
		Records:  len(res.Records),
	}
	h.result.AddEvent(h.event(EventCompile, prog.Name))
	return prog, res, nil
}

// compileFailed turns a load, build or compile error into a result. The
// scenario passes if it expected an error with matching text.
func (h *Harness) compileFailed(err error) (*Result, error) {
	s := h.scenario
	if s.ExpectError == "" {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, err
		}
		h.result.AddError(fmt.Sprintf("compile: %v", err))
		return h.result, nil
	}
	e := h.event(EventError, "")
	e.Value = err.Error()
	h.result.AddEvent(e)
	if !strings.Contains(err.Error(), s.ExpectError) {
		h.result.AddError(fmt.Sprintf("expected error containing %q, got %q", s.ExpectError, err.Error()))
	}
	return h.result, nil
}
