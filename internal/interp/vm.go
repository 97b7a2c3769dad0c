package interp

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
)

// Machine executes stitched virtual stencils.
//
// It holds no state between runs; all program state lives in the code and
// data regions handed to Execute.
type Machine struct {
	order  binary.ByteOrder
	logger *slog.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithMachineLogger traces every executed fragment at debug level.
func WithMachineLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = l
	}
}

// NewMachine creates a Machine for the given byte order.
func NewMachine(order binary.ByteOrder, opts ...MachineOption) *Machine {
	m := &Machine{
		order:  order,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ExecError reports a fault while running virtual code.
type ExecError struct {
	PC     int
	Reason string
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	return fmt.Sprintf("virtual machine fault at pc=%d: %s", e.PC, e.Reason)
}

type run struct {
	m          *Machine
	code, data []byte
	dataBase   int64
}

func (r *run) fault(pc int, format string, args ...any) error {
	return &ExecError{PC: pc, Reason: fmt.Sprintf(format, args...)}
}

// readName decodes a header's length-prefixed name starting at pc.
func (r *run) readName(pc int) (string, int, error) {
	if pc >= len(r.code) {
		return "", pc, r.fault(pc, "truncated header")
	}
	n := int(r.code[pc])
	if pc+1+n > len(r.code) {
		return "", pc, r.fault(pc, "truncated name")
	}
	return string(r.code[pc+1 : pc+1+n]), pc + 1 + n, nil
}

// target resolves the rel32 field at pc to an address relative to code start.
func (r *run) target(pc int) (int64, error) {
	if pc+fieldLen > len(r.code) {
		return 0, r.fault(pc, "truncated field")
	}
	rel := int32(r.m.order.Uint32(r.code[pc:]))
	return int64(pc) + fieldLen + int64(rel), nil
}

// cell returns the 4-byte data cell at address.
func (r *run) cell(pc int, addr int64) ([]byte, error) {
	off := addr - r.dataBase
	if off < 0 || off+4 > int64(len(r.data)) {
		return nil, r.fault(pc, "data address %#x outside the data region", addr)
	}
	return r.data[off : off+4], nil
}

// Execute runs the program whose entry shell starts at entry. dataBase is
// the distance from the start of code to the start of data, as applied to
// PATCH_OBJECT values.
func (m *Machine) Execute(code, data []byte, dataBase int64, entry uint32) (int32, error) {
	r := &run{m: m, code: code, data: data, dataBase: dataBase}
	pc := int(entry)
	if pc >= len(code) || code[pc] != opEnter {
		return 0, r.fault(pc, "entry point is not an entry shell")
	}
	pc++

	regs := [2]Value{Int(0), Int(0)}
	fragments := 0
	for {
		if pc >= len(code) {
			return 0, r.fault(pc, "ran off the end of code")
		}
		switch code[pc] {
		case opRet:
			m.logger.Debug("program finished", "fragments", fragments)
			return 1, nil
		case opFragment:
			next, err := r.fragment(pc, &regs)
			if err != nil {
				return 0, err
			}
			pc = next
			fragments++
		default:
			return 0, r.fault(pc, "invalid opcode %#02x", code[pc])
		}
	}
}

// fragment executes one stitched stencil and returns the pc after it.
func (r *run) fragment(start int, regs *[2]Value) (int, error) {
	name, pc, err := r.readName(start + 1)
	if err != nil {
		return 0, err
	}
	def, ok := catalogue[name]
	if !ok {
		return 0, r.fault(start, "unknown stencil %q", name)
	}

	var heap, calls []int64
	var fields []int
records:
	for pc < len(r.code) {
		switch r.code[pc] {
		case opHeap, opCall:
			addr, err := r.target(pc + 1)
			if err != nil {
				return 0, err
			}
			if r.code[pc] == opHeap {
				heap = append(heap, addr)
			} else {
				calls = append(calls, addr)
			}
			fields = append(fields, pc)
			pc += 1 + fieldLen
		case opJump:
			return 0, r.fault(pc, "unstripped continuation in %s", name)
		default:
			break records
		}
	}

	switch def.kind {
	case kindLoad, kindStore:
		if len(heap) != 1 {
			return 0, r.fault(start, "%s needs one heap reference, has %d", name, len(heap))
		}
		cell, err := r.cell(fields[0], heap[0])
		if err != nil {
			return 0, err
		}
		if def.kind == kindLoad {
			regs[def.slot] = DecodeValue(def.target, cell, r.m.order)
		} else {
			copy(cell, regs[0].Encode(r.m.order))
		}
	default:
		call := func(auxName string, args ...float32) (Value, error) {
			if len(calls) != 1 {
				return Value{}, r.fault(start, "%s needs one call, has %d", name, len(calls))
			}
			return r.aux(int(calls[0]), auxName, args...)
		}
		res, err := def.apply(regs[0], regs[1], call)
		if err != nil {
			return 0, r.fault(start, "%s: %v", name, err)
		}
		regs[0] = res
	}

	r.m.logger.Debug("fragment", "pc", start, "stencil", name, "slot0", regs[0], "slot1", regs[1])
	return pc, nil
}

// aux runs the auxiliary function at addr, which must be named want.
func (r *run) aux(addr int, want string, args ...float32) (Value, error) {
	if addr < 0 || addr >= len(r.code) || r.code[addr] != opAux {
		return Value{}, r.fault(addr, "call target is not an auxiliary function")
	}
	name, pc, err := r.readName(addr + 1)
	if err != nil {
		return Value{}, err
	}
	if name != want {
		return Value{}, r.fault(addr, "call reached %s, expected %s", name, want)
	}

	var consts []float32
	for pc < len(r.code) && r.code[pc] == opConst {
		at, err := r.target(pc + 1)
		if err != nil {
			return Value{}, err
		}
		cell, err := r.cell(pc, at)
		if err != nil {
			return Value{}, err
		}
		consts = append(consts, math.Float32frombits(r.m.order.Uint32(cell)))
		pc += 1 + fieldLen
	}
	if pc >= len(r.code) || r.code[pc] != opRet {
		return Value{}, r.fault(pc, "auxiliary function %s does not return", name)
	}
	if len(consts) != 1 {
		return Value{}, r.fault(addr, "%s needs one constant, has %d", name, len(consts))
	}

	switch name {
	case "aux_get_42":
		return Float(args[0] + consts[0]), nil
	case "floor_div":
		x := args[0] / args[1]
		i := int32(x)
		if x < 0 && x != float32(i) {
			i -= int32(consts[0])
		}
		return Int(i), nil
	}
	return Value{}, r.fault(addr, "unknown auxiliary function %s", name)
}
