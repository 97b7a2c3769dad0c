package interp

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roach88/stitch/internal/elfobj"
)

// Well-known symbols of the virtual stencil object.
const (
	entryShell = "entry_function_shell"
	fortyTwo   = "forty_two"
	floorOne   = "floor_one"
)

func header(op byte, name string) []byte {
	return append([]byte{op, byte(len(name))}, name...)
}

// field appends opcode plus an empty rel32 and returns the field offset.
func field(code []byte, op byte) ([]byte, int) {
	code = append(code, op)
	at := len(code)
	return append(code, 0, 0, 0, 0), at
}

func pc32(at int, symbol string, addend int64) elfobj.Reloc {
	return elfobj.Reloc{Offset: at, Type: uint32(elf.R_X86_64_PC32), Symbol: symbol, Addend: addend - fieldLen}
}

func plt32(at int, symbol string) elfobj.Reloc {
	return elfobj.Reloc{Offset: at, Type: uint32(elf.R_X86_64_PLT32), Symbol: symbol, Addend: -fieldLen}
}

func f32(v float32, order binary.ByteOrder) []byte {
	buf := make([]byte, 4)
	order.PutUint32(buf, math.Float32bits(v))
	return buf
}

// StencilObject builds a relocatable ELF object holding a virtual stencil
// for every name in the catalogue, plus the entry shell, auxiliary
// functions, constants and dummy_<dtype> heap placeholders.
func StencilObject(order binary.ByteOrder) ([]byte, error) {
	w := elfobj.New(elf.EM_X86_64, order)

	for _, name := range []string{"dummy_int", "dummy_float"} {
		if err := w.BSS(name, 4); err != nil {
			return nil, err
		}
	}

	// forty_two is referenced through the .rodata section symbol and
	// floor_one through its own symbol, as compilers do for anonymous
	// and named constants.
	off42, err := w.Rodata(fortyTwo, f32(42, order))
	if err != nil {
		return nil, err
	}
	if _, err := w.Rodata(floorOne, f32(1, order)); err != nil {
		return nil, err
	}

	code, at := field(header(opAux, "aux_get_42"), opConst)
	code = append(code, opRet)
	if err := w.Func("aux_get_42", code, pc32(at, ".rodata", int64(off42))); err != nil {
		return nil, err
	}

	code, at = field(header(opAux, "floor_div"), opConst)
	code = append(code, opRet)
	if err := w.Func("floor_div", code, pc32(at, floorOne, 0)); err != nil {
		return nil, err
	}

	code, at = field([]byte{opEnter}, opJump)
	code = append(code, opRet)
	if err := w.Func(entryShell, code, plt32(at, "result_int")); err != nil {
		return nil, err
	}

	names := Catalog{}.Names()
	for _, name := range names {
		def := catalogue[name]
		code := header(opFragment, name)
		var relocs []elfobj.Reloc

		switch def.kind {
		case kindLoad, kindStore:
			code, at = field(code, opHeap)
			relocs = append(relocs, pc32(at, "dummy_"+tname(def.target), 0))
		}
		if def.aux != "" {
			code, at = field(code, opCall)
			relocs = append(relocs, plt32(at, def.aux))
		}
		code, at = field(code, opJump)
		relocs = append(relocs, plt32(at, "result_"+def.result))

		if err := w.Func(name, code, relocs...); err != nil {
			return nil, fmt.Errorf("stencil %s: %w", name, err)
		}
	}

	return w.Bytes()
}
