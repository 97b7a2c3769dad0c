package runner

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/roach88/stitch/internal/stencil"
)

// Region selects the code or data region of a Memory.
type Region uint8

const (
	RegionCode Region = iota + 1
	RegionData
)

func (r Region) String() string {
	switch r {
	case RegionCode:
		return "code"
	case RegionData:
		return "data"
	default:
		return fmt.Sprintf("region(%d)", uint8(r))
	}
}

// ErrNotAllocated is returned when a region is used before allocation.
var ErrNotAllocated = errors.New("region not allocated")

// ErrNoEntryPoint is returned by Run before SetEntry.
var ErrNoEntryPoint = errors.New("no entry point set")

// ErrNativeUnsupported is returned by NewNativeMemory off linux/amd64.
var ErrNativeUnsupported = errors.New("native execution is only supported on linux/amd64")

// Memory is the runtime side of the command stream: one code region,
// one data region and an entry point. A Memory is owned by a single
// target handle and is not safe for concurrent use.
type Memory interface {
	// ByteOrder is the order patches and values are written in.
	ByteOrder() binary.ByteOrder

	// Free releases both regions. It is a no-op when nothing is allocated.
	Free() error

	Allocate(region Region, size uint32) error
	Copy(region Region, offset uint32, data []byte) error

	// Patch applies a relocation at a code offset.
	Patch(offset uint32, kind stencil.PatchKind, value int32) error

	// DataOffset is the distance from the code region to the data
	// region, added to every PATCH_OBJECT value.
	DataOffset() (int64, error)

	SetEntry(offset uint32) error

	// Run executes the program from its entry point to completion.
	Run() (int32, error)

	Read(region Region, offset, size uint32) ([]byte, error)

	// CodeSize is the allocated size of the code region.
	CodeSize() uint32
}

func bounds(region Region, have int, offset, size uint32) error {
	if uint64(offset)+uint64(size) > uint64(have) {
		return fmt.Errorf("%s region: %d bytes at offset %d exceed size %d", region, size, offset, have)
	}
	return nil
}

// applyPatch writes a relocation value into code in place.
func applyPatch(code []byte, order binary.ByteOrder, offset uint32, kind stencil.PatchKind, value int32) error {
	if err := bounds(RegionCode, len(code), offset, 4); err != nil {
		return err
	}
	field := code[offset : offset+4]
	switch kind {
	case stencil.PatchRelative32:
		order.PutUint32(field, uint32(value))
	case stencil.PatchBranch26:
		if value%4 != 0 {
			return fmt.Errorf("branch26 patch at %d: value %d is not word aligned", offset, value)
		}
		words := value / 4
		if words < -(1<<25) || words >= 1<<25 {
			return fmt.Errorf("branch26 patch at %d: value %d out of range", offset, value)
		}
		insn := order.Uint32(field)
		insn = insn&^0x03FFFFFF | uint32(words)&0x03FFFFFF
		order.PutUint32(field, insn)
	default:
		return fmt.Errorf("patch at %d: unsupported kind %s", offset, kind)
	}
	return nil
}
