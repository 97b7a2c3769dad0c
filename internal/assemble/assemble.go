package assemble

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/roach88/stitch/internal/command"
	"github.com/roach88/stitch/internal/graph"
	"github.com/roach88/stitch/internal/schedule"
	"github.com/roach88/stitch/internal/stencil"
)

// Variable is the heap cell backing a net.
type Variable struct {
	Offset uint32      `json:"offset"`
	Size   uint32      `json:"size"`
	Dtype  graph.Dtype `json:"dtype"`
}

// SectionLayout places a constant section in the data region.
type SectionLayout struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
	Size   uint32 `json:"size"`
}

// FunctionLayout places an auxiliary function in the code region.
type FunctionLayout struct {
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
	Size   uint32 `json:"size"`
}

// Layout summarises both memory regions.
type Layout struct {
	DataSize  uint32           `json:"data_size"`
	CodeSize  uint32           `json:"code_size"`
	Sections  []SectionLayout  `json:"sections"`
	Functions []FunctionLayout `json:"functions"`

	// Fragments holds the code offset of every step's fragment.
	Fragments []uint32 `json:"fragments"`
}

// Patch is one resolved relocation.
type Patch struct {
	Op     command.Opcode
	Offset uint32
	Kind   stencil.PatchKind
	Value  int32

	Symbol string
	Target stencil.TargetKind
}

// Result is an assembled program. Stream is not terminated, so callers
// append RUN_PROG, READ_DATA and END_COM as needed.
type Result struct {
	Stream      []byte
	Records     []command.Record
	Order       binary.ByteOrder
	Variables   map[graph.NetID]Variable
	EntryOffset uint32
	Layout      Layout
	Patches     []Patch
	Plan        *schedule.Plan
}

// Option configures Assemble.
type Option func(*assembler)

// WithLogger traces layout and patch decisions at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(a *assembler) {
		a.logger = l
	}
}

type assembler struct {
	db     *stencil.Database
	g      *graph.Graph
	logger *slog.Logger

	sectionAddr map[int]uint32
	funcAddr    map[string]uint32
	vars        map[graph.NetID]Variable
	patches     []Patch
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// Assemble schedules the graph for the given store roots and builds its
// command stream. On error no stream is returned.
func Assemble(db *stencil.Database, g *graph.Graph, roots []graph.NodeID, opts ...Option) (*Result, error) {
	a := &assembler{
		db:          db,
		g:           g,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		sectionAddr: make(map[int]uint32),
		funcAddr:    make(map[string]uint32),
		vars:        make(map[graph.NetID]Variable),
	}
	for _, opt := range opts {
		opt(a)
	}

	plan, err := schedule.Schedule(g, roots)
	if err != nil {
		return nil, err
	}
	return a.assemble(plan)
}

func (a *assembler) assemble(plan *schedule.Plan) (*Result, error) {
	names := plan.StencilNames()
	for _, name := range names {
		if !a.db.Has(name) {
			return nil, &MissingStencilError{Name: name}
		}
	}
	aux, err := a.db.AuxFunctions(names)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	sections, err := a.db.ConstSections(append(append([]string{}, names...), aux...))
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	w := command.NewWriter(a.db.ByteOrder())
	var layout Layout

	// Data region.
	offset := 0
	sectionData := make([][]byte, len(sections))
	for i, idx := range sections {
		data, err := a.db.SectionData(idx)
		if err != nil {
			return nil, fmt.Errorf("assemble: %w", err)
		}
		name, _ := a.db.SectionName(idx)
		sectionData[i] = data
		a.sectionAddr[idx] = uint32(offset)
		layout.Sections = append(layout.Sections, SectionLayout{Index: idx, Name: name, Offset: uint32(offset), Size: uint32(len(data))})
		offset += align4(len(data))
	}
	for _, net := range plan.HeapNets {
		dtype := a.g.Net(net).Dtype
		size, err := a.db.SymbolSize("dummy_" + dtype.StencilName())
		if err != nil {
			return nil, fmt.Errorf("assemble: heap cell for %s: %w", dtype, err)
		}
		a.vars[net] = Variable{Offset: uint32(offset), Size: uint32(size), Dtype: dtype}
		offset += align4(size)
	}
	layout.DataSize = uint32(offset)

	// Code region: auxiliary functions, then the stitched body.
	offset = 0
	funcCode := make([][]byte, len(aux))
	for i, name := range aux {
		code, err := a.db.FunctionBytes(name)
		if err != nil {
			return nil, fmt.Errorf("assemble: %w", err)
		}
		funcCode[i] = code
		a.funcAddr[name] = uint32(offset)
		layout.Functions = append(layout.Functions, FunctionLayout{Name: name, Offset: uint32(offset), Size: uint32(len(code))})
		offset += align4(len(code))
	}
	entry := uint32(offset)

	prologue, epilogue, err := a.db.EntryShell()
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	body := append([]byte{}, prologue...)
	for _, step := range plan.Steps {
		site := int(entry) + len(body)
		layout.Fragments = append(layout.Fragments, uint32(site))
		code, err := a.db.FragmentBytes(step.Name)
		if err != nil {
			return nil, fmt.Errorf("assemble: %w", err)
		}
		relocs, err := a.db.Relocations(step.Name)
		if err != nil {
			return nil, fmt.Errorf("assemble: %w", err)
		}
		for _, r := range relocs {
			if err := a.resolve(step.Name, site, r, step); err != nil {
				return nil, err
			}
		}
		body = append(body, code...)
	}
	body = append(body, epilogue...)
	layout.CodeSize = entry + uint32(len(body))

	for _, name := range aux {
		relocs, err := a.db.FunctionRelocations(name)
		if err != nil {
			return nil, fmt.Errorf("assemble: %w", err)
		}
		for _, r := range relocs {
			if err := a.resolve(name, int(a.funcAddr[name]), r, schedule.Step{}); err != nil {
				return nil, err
			}
		}
	}

	w.FreeMemory()
	w.AllocateData(layout.DataSize)
	for i, s := range layout.Sections {
		w.CopyData(s.Offset, sectionData[i])
	}
	for _, net := range plan.Constants {
		v := a.vars[net]
		cell, err := a.g.Node(a.g.Producer(net)).Value.Encode(int(v.Size), a.db.ByteOrder())
		if err != nil {
			return nil, fmt.Errorf("assemble: constant net %d: %w", net, err)
		}
		w.CopyData(v.Offset, cell)
	}
	w.AllocateCode(layout.CodeSize)
	for i, f := range layout.Functions {
		w.CopyCode(f.Offset, funcCode[i])
	}
	w.CopyCode(entry, body)
	for _, p := range a.patches {
		if err := w.Patch(p.Op, p.Offset, uint32(p.Kind), p.Value); err != nil {
			return nil, fmt.Errorf("assemble: %w", err)
		}
	}
	w.EntryPoint(entry)

	a.logger.Debug("assembled program",
		"steps", len(plan.Steps),
		"aux", len(aux),
		"data_size", layout.DataSize,
		"code_size", layout.CodeSize,
		"patches", len(a.patches))

	return &Result{
		Stream:      w.Bytes(),
		Records:     w.Records(),
		Order:       a.db.ByteOrder(),
		Variables:   a.vars,
		EntryOffset: entry,
		Layout:      layout,
		Patches:     a.patches,
		Plan:        plan,
	}, nil
}

// resolve records the patch for relocation r of the function placed at
// base. step supplies the heap net of load and store fragments.
func (a *assembler) resolve(function string, base int, r stencil.Relocation, step schedule.Step) error {
	unknown := &UnknownRelocationKindError{Function: function, Symbol: r.Symbol, Target: r.Target, Offset: r.Offset}

	var target int64
	var op command.Opcode
	switch r.Target {
	case stencil.TargetObject:
		if !step.Heap() {
			return unknown
		}
		v, ok := a.vars[step.Net]
		if !ok {
			return unknown
		}
		target, op = int64(v.Offset), command.PatchObject
	case stencil.TargetSection:
		addr, ok := a.sectionAddr[r.Section]
		if !ok {
			return unknown
		}
		target, op = int64(addr)+r.Value, command.PatchObject
	case stencil.TargetFunction:
		addr, ok := a.funcAddr[r.Symbol]
		if !ok {
			return unknown
		}
		target, op = int64(addr), command.PatchFunc
	default:
		return unknown
	}

	site := int64(base + r.Offset)
	value := target + r.Addend - site
	if value < math.MinInt32 || value > math.MaxInt32 {
		return fmt.Errorf("assemble: %s: patch value %d at offset %d overflows int32", function, value, site)
	}
	a.patches = append(a.patches, Patch{
		Op:     op,
		Offset: uint32(site),
		Kind:   r.Kind,
		Value:  int32(value),
		Symbol: r.Symbol,
		Target: r.Target,
	})
	a.logger.Debug("patch", "function", function, "op", op, "offset", site, "value", value, "symbol", r.Symbol)
	return nil
}
