package stencil

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/roach88/stitch/internal/graph"
	"github.com/roach88/stitch/internal/ir"
)

// EntryShellName is the function whose prologue and epilogue wrap the
// stitched fragments.
const EntryShellName = "entry_function_shell"

const (
	resultPrefix = "result_"
	dummyPrefix  = "dummy_"
)

type section struct {
	name  string
	typ   elf.SectionType
	flags elf.SectionFlag
	data  []byte
}

// constant reports whether the section can back a TargetSection relocation.
func (s section) constant() bool {
	return s.flags&elf.SHF_ALLOC != 0 && s.flags&elf.SHF_EXECINSTR == 0
}

type function struct {
	code   []byte
	relocs []Relocation

	// result is the continuation suffix ("float_int"), empty for functions
	// that are not stencils.
	result string
	end    int
}

// Database is a parsed stencil object. It is read-only after Parse and
// safe for concurrent use.
type Database struct {
	arch     archInfo
	machine  elf.Machine
	order    binary.ByteOrder
	digest   string
	sections []section
	sizes    map[string]int
	funcs    map[string]*function
	stencils []string
}

// Open reads and parses the stencil object at path.
func Open(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open stencil object: %w", err)
	}
	db, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// Parse builds a Database from the bytes of a relocatable ELF object.
func Parse(data []byte) (*Database, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse stencil object: %w", err)
	}
	defer f.Close()

	arch, ok := archs[f.Machine]
	if !ok {
		return nil, fmt.Errorf("parse stencil object: unsupported machine %s", f.Machine)
	}
	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("parse stencil object: unsupported class %s", f.Class)
	}

	db := &Database{
		arch:    arch,
		machine: f.Machine,
		order:   f.ByteOrder,
		digest:  ir.StencilsHash(data),
		sizes:   make(map[string]int),
		funcs:   make(map[string]*function),
	}

	db.sections = make([]section, len(f.Sections))
	for i, s := range f.Sections {
		sec := section{name: s.Name, typ: s.Type, flags: s.Flags}
		switch s.Type {
		case elf.SHT_NULL:
		case elf.SHT_NOBITS:
			sec.data = make([]byte, s.Size)
		default:
			sec.data, err = s.Data()
			if err != nil {
				return nil, fmt.Errorf("read section %s: %w", s.Name, err)
			}
		}
		db.sections[i] = sec
	}

	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("read symbols: %w", err)
	}

	// Functions by section, for mapping relocation offsets back to owners.
	type span struct {
		name       string
		start, end uint64
	}
	owners := make(map[int][]span)

	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		db.sizes[s.Name] = int(s.Size)
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || !db.defined(s.Section) {
			continue
		}
		idx := int(s.Section)
		code := db.sections[idx].data
		if s.Value+s.Size > uint64(len(code)) {
			return nil, fmt.Errorf("function %s extends past section %s", s.Name, db.sections[idx].name)
		}
		db.funcs[s.Name] = &function{code: code[s.Value : s.Value+s.Size]}
		owners[idx] = append(owners[idx], span{s.Name, s.Value, s.Value + s.Size})
	}

	for _, s := range f.Sections {
		switch s.Type {
		case elf.SHT_REL:
			if db.sectionFlags(int(s.Info))&elf.SHF_EXECINSTR != 0 {
				return nil, fmt.Errorf("section %s: REL relocations without addends are not supported", s.Name)
			}
		case elf.SHT_RELA:
			target := int(s.Info)
			if db.sectionFlags(target)&elf.SHF_EXECINSTR == 0 {
				continue
			}
			entries, err := db.readRela(s)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				var owner *span
				for i := range owners[target] {
					sp := &owners[target][i]
					if e.Off >= sp.start && e.Off < sp.end {
						owner = sp
						break
					}
				}
				if owner == nil {
					continue
				}
				r, err := db.relocation(syms, e, int(e.Off-owner.start))
				if err != nil {
					return nil, fmt.Errorf("function %s: %w", owner.name, err)
				}
				fn := db.funcs[owner.name]
				fn.relocs = append(fn.relocs, r)
			}
		}
	}

	for name, fn := range db.funcs {
		slices.SortStableFunc(fn.relocs, func(a, b Relocation) int { return a.Offset - b.Offset })
		if len(fn.relocs) == 0 {
			continue
		}
		last := fn.relocs[len(fn.relocs)-1]
		if last.Target != TargetContinuation {
			continue
		}
		end := last.Offset - arch.fieldOffset
		if end < 0 || end+arch.callLen > len(fn.code) {
			return nil, fmt.Errorf("function %s: continuation at offset %d does not fit a %d-byte call", name, last.Offset, arch.callLen)
		}
		fn.result = strings.TrimPrefix(last.Symbol, resultPrefix)
		fn.end = end
		if name != EntryShellName {
			db.stencils = append(db.stencils, name)
		}
	}
	slices.Sort(db.stencils)

	return db, nil
}

func (db *Database) defined(idx elf.SectionIndex) bool {
	return idx > elf.SHN_UNDEF && idx < elf.SHN_LORESERVE && int(idx) < len(db.sections)
}

func (db *Database) sectionFlags(idx int) elf.SectionFlag {
	if idx <= 0 || idx >= len(db.sections) {
		return 0
	}
	return db.sections[idx].flags
}

func (db *Database) readRela(s *elf.Section) ([]elf.Rela64, error) {
	raw, err := s.Data()
	if err != nil {
		return nil, fmt.Errorf("read section %s: %w", s.Name, err)
	}
	if len(raw)%24 != 0 {
		return nil, fmt.Errorf("section %s: size %d is not a multiple of 24", s.Name, len(raw))
	}
	entries := make([]elf.Rela64, len(raw)/24)
	if err := binary.Read(bytes.NewReader(raw), db.order, entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("section %s: %w", s.Name, err)
	}
	return entries, nil
}

func (db *Database) relocation(syms []elf.Symbol, e elf.Rela64, offset int) (Relocation, error) {
	symIdx := int(elf.R_SYM64(e.Info))
	if symIdx == 0 || symIdx > len(syms) {
		return Relocation{}, fmt.Errorf("relocation at %d references symbol %d", offset, symIdx)
	}
	sym := syms[symIdx-1]
	kind, typeName := db.arch.patchKind(elf.R_TYPE64(e.Info))

	r := Relocation{
		Offset: offset,
		Kind:   kind,
		Symbol: sym.Name,
		Value:  int64(sym.Value),
		Addend: e.Addend,
		Type:   typeName,
	}
	if db.defined(sym.Section) {
		r.Section = int(sym.Section)
	}

	typ := elf.ST_TYPE(sym.Info)
	switch {
	case typ == elf.STT_SECTION:
		if r.Section != 0 {
			r.Symbol = db.sections[r.Section].name
			if db.sections[r.Section].constant() {
				r.Target = TargetSection
			}
		}
	case strings.HasPrefix(sym.Name, resultPrefix) && r.Section == 0:
		r.Target = TargetContinuation
	case strings.HasPrefix(sym.Name, dummyPrefix) && r.Section != 0:
		r.Target = TargetObject
	case typ == elf.STT_FUNC && r.Section != 0:
		r.Target = TargetFunction
	case (typ == elf.STT_OBJECT || typ == elf.STT_NOTYPE) && r.Section != 0 && db.sections[r.Section].constant():
		r.Target = TargetSection
	}
	return r, nil
}

// Arch returns the architecture name ("x86_64" or "aarch64").
func (db *Database) Arch() string { return db.arch.name }

// Machine returns the ELF machine of the object.
func (db *Database) Machine() elf.Machine { return db.machine }

// ByteOrder returns the object's byte order, which the command stream uses.
func (db *Database) ByteOrder() binary.ByteOrder { return db.order }

// CallLength is the size of the stripped continuation call.
func (db *Database) CallLength() int { return db.arch.callLen }

// Digest returns the content hash of the object bytes.
func (db *Database) Digest() string { return db.digest }

// Has reports whether name is a stencil.
func (db *Database) Has(name string) bool {
	fn, ok := db.funcs[name]
	return ok && fn.result != "" && name != EntryShellName
}

// Stencils returns the names of all stencils, sorted.
func (db *Database) Stencils() []string {
	return slices.Clone(db.stencils)
}

// ResultDtype returns the dtype a stencil leaves in slot 0. It implements
// graph.Catalog.
func (db *Database) ResultDtype(name string) (graph.Dtype, bool) {
	if !db.Has(name) {
		return graph.Invalid, false
	}
	first, _, _ := strings.Cut(db.funcs[name].result, "_")
	d, err := graph.ParseDtype(first)
	if err != nil {
		return graph.Invalid, false
	}
	return d, true
}

func (db *Database) function(name string) (*function, error) {
	fn, ok := db.funcs[name]
	if !ok {
		return nil, &UnknownSymbolError{Name: name}
	}
	return fn, nil
}

func (db *Database) stencil(name string) (*function, error) {
	fn, err := db.function(name)
	if err != nil {
		return nil, err
	}
	if fn.result == "" {
		return nil, &MissingContinuationError{Function: name}
	}
	return fn, nil
}

func checkSupported(name string, relocs []Relocation) error {
	for _, r := range relocs {
		if r.Kind == PatchUnsupported {
			return &UnsupportedRelocationError{Function: name, Type: r.Type, Offset: r.Offset}
		}
	}
	return nil
}

// FragmentBytes returns the stencil body without its trailing continuation call.
func (db *Database) FragmentBytes(name string) ([]byte, error) {
	fn, err := db.stencil(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(fn.code[:fn.end]), nil
}

// Relocations returns the patch sites inside the fragment of a stencil.
// The continuation relocation is not part of the fragment.
func (db *Database) Relocations(name string) ([]Relocation, error) {
	fn, err := db.stencil(name)
	if err != nil {
		return nil, err
	}
	var out []Relocation
	for _, r := range fn.relocs {
		if r.Offset < fn.end {
			out = append(out, r)
		}
	}
	if err := checkSupported(name, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FunctionBytes returns the complete body of any function.
func (db *Database) FunctionBytes(name string) ([]byte, error) {
	fn, err := db.function(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(fn.code), nil
}

// FunctionRelocations returns every patch site of a function.
func (db *Database) FunctionRelocations(name string) ([]Relocation, error) {
	fn, err := db.function(name)
	if err != nil {
		return nil, err
	}
	if err := checkSupported(name, fn.relocs); err != nil {
		return nil, err
	}
	return slices.Clone(fn.relocs), nil
}

// SymbolSize returns st_size of a named symbol.
func (db *Database) SymbolSize(name string) (int, error) {
	size, ok := db.sizes[name]
	if !ok {
		return 0, &UnknownSymbolError{Name: name}
	}
	return size, nil
}

// SectionName returns the name of section idx.
func (db *Database) SectionName(idx int) (string, error) {
	if idx <= 0 || idx >= len(db.sections) {
		return "", &UnknownSymbolError{Name: fmt.Sprintf("section %d", idx)}
	}
	return db.sections[idx].name, nil
}

// SectionSize returns the size of section idx.
func (db *Database) SectionSize(idx int) (int, error) {
	data, err := db.SectionData(idx)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// SectionData returns the contents of section idx. NOBITS sections read as zeros.
func (db *Database) SectionData(idx int) ([]byte, error) {
	if idx <= 0 || idx >= len(db.sections) {
		return nil, &UnknownSymbolError{Name: fmt.Sprintf("section %d", idx)}
	}
	return slices.Clone(db.sections[idx].data), nil
}

// AuxFunctions returns every function transitively called by the named
// functions, sorted by name.
func (db *Database) AuxFunctions(names []string) ([]string, error) {
	seen := make(map[string]bool)
	queue := slices.Clone(names)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		fn, err := db.function(name)
		if err != nil {
			return nil, err
		}
		for _, r := range fn.relocs {
			if r.Target == TargetFunction && !seen[r.Symbol] {
				seen[r.Symbol] = true
				queue = append(queue, r.Symbol)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

// ConstSections returns the indices of the constant sections referenced
// by the named functions, sorted.
func (db *Database) ConstSections(names []string) ([]int, error) {
	seen := make(map[int]bool)
	for _, name := range names {
		fn, err := db.function(name)
		if err != nil {
			return nil, err
		}
		for _, r := range fn.relocs {
			if r.Target == TargetSection {
				seen[r.Section] = true
			}
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out, nil
}

// EntryShell returns the code before and after the continuation call of
// the entry function. The stitched fragments go between the two.
func (db *Database) EntryShell() (prologue, epilogue []byte, err error) {
	fn, err := db.stencil(EntryShellName)
	if err != nil {
		return nil, nil, err
	}
	if len(fn.relocs) > 1 {
		r := fn.relocs[0]
		return nil, nil, fmt.Errorf("%s: unexpected relocation %s to %s at offset %d", EntryShellName, r.Type, r.Symbol, r.Offset)
	}
	return slices.Clone(fn.code[:fn.end]), slices.Clone(fn.code[fn.end+db.arch.callLen:]), nil
}
