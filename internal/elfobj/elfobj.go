// Package elfobj writes minimal ELF64 relocatable objects.
//
// It emits exactly the shape a stencil compiler produces: one .text section
// holding every function, a .rela.text relocation table, .rodata constants,
// .bss objects, and the symbol and string tables. The output is read back
// by debug/elf like any compiler-produced object.
package elfobj

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"slices"
)

// Section indices of the generated object.
const (
	secText = iota + 1
	secRelaText
	secRodata
	secBSS
	secSymtab
	secStrtab
	secShstrtab
	numSections
)

// Reloc is a relocation against a function body.
type Reloc struct {
	// Offset is the position of the patched field within the function.
	Offset int

	// Type is the machine-specific relocation type (elf.R_X86_64_PC32, ...).
	Type uint32

	// Symbol names the target. ".text", ".rodata" and ".bss" refer to
	// section symbols; any other name that is not defined in the object
	// becomes an undefined global symbol.
	Symbol string

	Addend int64
}

type symbol struct {
	name    string
	typ     elf.SymType
	bind    elf.SymBind
	section uint16
	value   uint64
	size    uint64
}

// Writer accumulates functions and data and serializes them.
type Writer struct {
	machine elf.Machine
	order   binary.ByteOrder

	text    []byte
	relocs  []Reloc
	rodata  []byte
	bssSize uint64

	locals  []symbol
	globals []symbol
	defined map[string]bool
}

// New creates an empty object for the given machine and byte order.
func New(machine elf.Machine, order binary.ByteOrder) *Writer {
	return &Writer{
		machine: machine,
		order:   order,
		defined: make(map[string]bool),
	}
}

func align(n, a uint64) uint64 {
	return (n + a - 1) / a * a
}

func (w *Writer) define(name string) error {
	if name == "" || w.defined[name] {
		return fmt.Errorf("elfobj: duplicate or empty symbol %q", name)
	}
	w.defined[name] = true
	return nil
}

// Func appends a global function to .text. Reloc offsets are relative to
// the start of code.
func (w *Writer) Func(name string, code []byte, relocs ...Reloc) error {
	if err := w.define(name); err != nil {
		return err
	}
	start := align(uint64(len(w.text)), 16)
	w.text = append(w.text, make([]byte, int(start)-len(w.text))...)
	w.text = append(w.text, code...)
	for _, r := range relocs {
		if r.Offset < 0 || r.Offset+4 > len(code) {
			return fmt.Errorf("elfobj: %s: relocation at %d outside %d-byte body", name, r.Offset, len(code))
		}
		r.Offset += int(start)
		w.relocs = append(w.relocs, r)
	}
	w.globals = append(w.globals, symbol{
		name:    name,
		typ:     elf.STT_FUNC,
		bind:    elf.STB_GLOBAL,
		section: secText,
		value:   start,
		size:    uint64(len(code)),
	})
	return nil
}

// Rodata appends a local object to .rodata and returns its offset in the
// section.
func (w *Writer) Rodata(name string, data []byte) (uint64, error) {
	if err := w.define(name); err != nil {
		return 0, err
	}
	start := align(uint64(len(w.rodata)), 4)
	w.rodata = append(w.rodata, make([]byte, int(start)-len(w.rodata))...)
	w.rodata = append(w.rodata, data...)
	w.locals = append(w.locals, symbol{
		name:    name,
		typ:     elf.STT_OBJECT,
		bind:    elf.STB_LOCAL,
		section: secRodata,
		value:   start,
		size:    uint64(len(data)),
	})
	return start, nil
}

// BSS reserves a zero-initialised global object in .bss.
func (w *Writer) BSS(name string, size int) error {
	if err := w.define(name); err != nil {
		return err
	}
	start := align(w.bssSize, 4)
	w.bssSize = start + uint64(size)
	w.globals = append(w.globals, symbol{
		name:    name,
		typ:     elf.STT_OBJECT,
		bind:    elf.STB_GLOBAL,
		section: secBSS,
		value:   start,
		size:    uint64(size),
	})
	return nil
}

var sectionSymbols = map[string]uint32{
	".text":   1,
	".rodata": 2,
	".bss":    3,
}

// Bytes serializes the object.
func (w *Writer) Bytes() ([]byte, error) {
	switch w.machine {
	case elf.EM_X86_64, elf.EM_AARCH64:
	default:
		return nil, fmt.Errorf("elfobj: unsupported machine %s", w.machine)
	}

	// Symbol table: null, three section symbols, locals, then globals.
	strtab := []byte{0}
	addStr := func(s string) uint32 {
		off := uint32(len(strtab))
		strtab = append(strtab, s...)
		strtab = append(strtab, 0)
		return off
	}

	syms := []elf.Sym64{{}}
	for _, sec := range []uint16{secText, secRodata, secBSS} {
		syms = append(syms, elf.Sym64{
			Info:  elf.ST_INFO(elf.STB_LOCAL, elf.STT_SECTION),
			Shndx: sec,
		})
	}
	index := make(map[string]uint32)
	emit := func(s symbol) {
		index[s.name] = uint32(len(syms))
		syms = append(syms, elf.Sym64{
			Name:  addStr(s.name),
			Info:  elf.ST_INFO(s.bind, s.typ),
			Shndx: s.section,
			Value: s.value,
			Size:  s.size,
		})
	}
	for _, s := range w.locals {
		emit(s)
	}
	firstGlobal := uint32(len(syms))
	for _, s := range w.globals {
		emit(s)
	}

	var undefined []string
	for _, r := range w.relocs {
		if _, ok := sectionSymbols[r.Symbol]; ok || w.defined[r.Symbol] {
			continue
		}
		if !slices.Contains(undefined, r.Symbol) {
			undefined = append(undefined, r.Symbol)
		}
	}
	slices.Sort(undefined)
	for _, name := range undefined {
		emit(symbol{name: name, typ: elf.STT_NOTYPE, bind: elf.STB_GLOBAL, section: uint16(elf.SHN_UNDEF)})
	}

	relas := make([]elf.Rela64, len(w.relocs))
	for i, r := range w.relocs {
		symIdx, ok := sectionSymbols[r.Symbol]
		if !ok {
			symIdx = index[r.Symbol]
		}
		relas[i] = elf.Rela64{
			Off:    uint64(r.Offset),
			Info:   elf.R_INFO(symIdx, r.Type),
			Addend: r.Addend,
		}
	}

	shstrtab := []byte{0}
	shName := func(s string) uint32 {
		off := uint32(len(shstrtab))
		shstrtab = append(shstrtab, s...)
		shstrtab = append(shstrtab, 0)
		return off
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, 64)) // header, written last
	place := func(data []byte, a uint64) uint64 {
		off := align(uint64(buf.Len()), a)
		buf.Write(make([]byte, int(off)-buf.Len()))
		buf.Write(data)
		return off
	}
	encode := func(v any) []byte {
		var b bytes.Buffer
		_ = binary.Write(&b, w.order, v)
		return b.Bytes()
	}

	headers := make([]elf.Section64, numSections)
	headers[secText] = elf.Section64{
		Name:      shName(".text"),
		Type:      uint32(elf.SHT_PROGBITS),
		Flags:     uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
		Off:       place(w.text, 16),
		Size:      uint64(len(w.text)),
		Addralign: 16,
	}
	relaData := encode(relas)
	headers[secRelaText] = elf.Section64{
		Name:      shName(".rela.text"),
		Type:      uint32(elf.SHT_RELA),
		Flags:     uint64(elf.SHF_INFO_LINK),
		Off:       place(relaData, 8),
		Size:      uint64(len(relaData)),
		Link:      secSymtab,
		Info:      secText,
		Addralign: 8,
		Entsize:   24,
	}
	headers[secRodata] = elf.Section64{
		Name:      shName(".rodata"),
		Type:      uint32(elf.SHT_PROGBITS),
		Flags:     uint64(elf.SHF_ALLOC),
		Off:       place(w.rodata, 4),
		Size:      uint64(len(w.rodata)),
		Addralign: 4,
	}
	headers[secBSS] = elf.Section64{
		Name:      shName(".bss"),
		Type:      uint32(elf.SHT_NOBITS),
		Flags:     uint64(elf.SHF_ALLOC | elf.SHF_WRITE),
		Off:       uint64(buf.Len()),
		Size:      w.bssSize,
		Addralign: 4,
	}
	symData := encode(syms)
	headers[secSymtab] = elf.Section64{
		Name:      shName(".symtab"),
		Type:      uint32(elf.SHT_SYMTAB),
		Off:       place(symData, 8),
		Size:      uint64(len(symData)),
		Link:      secStrtab,
		Info:      firstGlobal,
		Addralign: 8,
		Entsize:   24,
	}
	headers[secStrtab] = elf.Section64{
		Name:      shName(".strtab"),
		Type:      uint32(elf.SHT_STRTAB),
		Off:       place(strtab, 1),
		Size:      uint64(len(strtab)),
		Addralign: 1,
	}
	headers[secShstrtab] = elf.Section64{
		Name:      shName(".shstrtab"),
		Type:      uint32(elf.SHT_STRTAB),
		Addralign: 1,
	}
	headers[secShstrtab].Off = place(shstrtab, 1)
	headers[secShstrtab].Size = uint64(len(shstrtab))

	shoff := place(encode(headers), 8)

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	if w.order == binary.BigEndian {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	}
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	hdr := encode(elf.Header64{
		Ident:     ident,
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(w.machine),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shoff,
		Ehsize:    64,
		Shentsize: 64,
		Shnum:     numSections,
		Shstrndx:  secShstrtab,
	})

	out := buf.Bytes()
	copy(out, hdr)
	return out, nil
}
