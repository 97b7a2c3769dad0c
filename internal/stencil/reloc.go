package stencil

import (
	"debug/elf"
	"fmt"
)

// PatchKind is the patch semantics carried in PATCH_* commands.
type PatchKind uint32

const (
	// PatchRelative32 stores the signed 32-bit value in place.
	PatchRelative32 PatchKind = 0

	// PatchBranch26 merges value/4 into the low 26 bits of an
	// aarch64 B or BL instruction.
	PatchBranch26 PatchKind = 1

	// PatchUnsupported marks relocation types without a translation.
	PatchUnsupported PatchKind = 0xFFFFFFFF
)

func (k PatchKind) String() string {
	switch k {
	case PatchRelative32:
		return "rel32"
	case PatchBranch26:
		return "branch26"
	case PatchUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("patch(%d)", uint32(k))
	}
}

// TargetKind classifies what a relocation points at.
type TargetKind uint8

const (
	// TargetUnknown is any symbol the assembler cannot place.
	TargetUnknown TargetKind = iota

	// TargetObject is a dummy_<dtype> placeholder standing for a heap net.
	TargetObject

	// TargetFunction is an auxiliary function defined in the object.
	TargetFunction

	// TargetSection is constant data in an allocated section.
	TargetSection

	// TargetContinuation is a result_* symbol ending a stencil.
	TargetContinuation
)

func (k TargetKind) String() string {
	switch k {
	case TargetObject:
		return "object"
	case TargetFunction:
		return "function"
	case TargetSection:
		return "section"
	case TargetContinuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// Relocation is one patch site inside a function.
type Relocation struct {
	// Offset is the position of the patched field from the function start.
	Offset int

	Kind   PatchKind
	Target TargetKind

	// Symbol is the target symbol name; section symbols use the section name.
	Symbol string

	// Section is the index of the section defining the target, 0 if undefined.
	Section int

	// Value is the target symbol's offset within its section.
	Value int64

	Addend int64

	// Type is the ELF relocation type name, for diagnostics.
	Type string
}

// archInfo holds the machine-specific constants of fragment detection.
type archInfo struct {
	name string

	// callLen is the size of the call/jump instruction ending a stencil.
	callLen int

	// fieldOffset is the distance from that instruction's start to its
	// relocated field.
	fieldOffset int

	patchKind func(typ uint32) (PatchKind, string)
}

var archs = map[elf.Machine]archInfo{
	elf.EM_X86_64: {
		name:        "x86_64",
		callLen:     5,
		fieldOffset: 1,
		patchKind: func(typ uint32) (PatchKind, string) {
			t := elf.R_X86_64(typ)
			switch t {
			case elf.R_X86_64_PC32, elf.R_X86_64_PLT32:
				return PatchRelative32, t.String()
			}
			return PatchUnsupported, t.String()
		},
	},
	elf.EM_AARCH64: {
		name:        "aarch64",
		callLen:     4,
		fieldOffset: 0,
		patchKind: func(typ uint32) (PatchKind, string) {
			t := elf.R_AARCH64(typ)
			switch t {
			case elf.R_AARCH64_CALL26, elf.R_AARCH64_JUMP26:
				return PatchBranch26, t.String()
			}
			return PatchUnsupported, t.String()
		},
	},
}
