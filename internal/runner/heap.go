package runner

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/roach88/stitch/internal/stencil"
)

// Executor runs code held in Go memory. dataBase is the distance from
// the start of code to the start of data.
type Executor interface {
	Execute(code, data []byte, dataBase int64, entry uint32) (int32, error)
}

// HeapMemory keeps both regions in Go slices. Execution is delegated to
// an Executor, typically the virtual stencil machine.
type HeapMemory struct {
	order    binary.ByteOrder
	exec     Executor
	dataBase int64

	code, data []byte
	entry      int64
}

// NewHeapMemory creates an empty HeapMemory. exec may be nil, in which
// case Run fails; the stream can still be built and inspected.
func NewHeapMemory(order binary.ByteOrder, exec Executor, dataBase int64) *HeapMemory {
	return &HeapMemory{order: order, exec: exec, dataBase: dataBase, entry: -1}
}

// ByteOrder implements Memory.
func (m *HeapMemory) ByteOrder() binary.ByteOrder { return m.order }

// Free implements Memory.
func (m *HeapMemory) Free() error {
	m.code, m.data, m.entry = nil, nil, -1
	return nil
}

func (m *HeapMemory) region(r Region) (*[]byte, error) {
	switch r {
	case RegionCode:
		return &m.code, nil
	case RegionData:
		return &m.data, nil
	}
	return nil, fmt.Errorf("unknown %s", r)
}

// Allocate implements Memory.
func (m *HeapMemory) Allocate(r Region, size uint32) error {
	buf, err := m.region(r)
	if err != nil {
		return err
	}
	*buf = make([]byte, size)
	return nil
}

// Copy implements Memory.
func (m *HeapMemory) Copy(r Region, offset uint32, data []byte) error {
	buf, err := m.region(r)
	if err != nil {
		return err
	}
	if *buf == nil {
		return fmt.Errorf("copy to %s: %w", r, ErrNotAllocated)
	}
	if err := bounds(r, len(*buf), offset, uint32(len(data))); err != nil {
		return err
	}
	copy((*buf)[offset:], data)
	return nil
}

// Patch implements Memory.
func (m *HeapMemory) Patch(offset uint32, kind stencil.PatchKind, value int32) error {
	if m.code == nil {
		return fmt.Errorf("patch: %w", ErrNotAllocated)
	}
	return applyPatch(m.code, m.order, offset, kind, value)
}

// DataOffset implements Memory.
func (m *HeapMemory) DataOffset() (int64, error) { return m.dataBase, nil }

// SetEntry implements Memory.
func (m *HeapMemory) SetEntry(offset uint32) error {
	if int(offset) >= len(m.code) {
		return fmt.Errorf("entry point %d outside code of %d bytes", offset, len(m.code))
	}
	m.entry = int64(offset)
	return nil
}

// Run implements Memory.
func (m *HeapMemory) Run() (int32, error) {
	if m.entry < 0 {
		return 0, ErrNoEntryPoint
	}
	if m.exec == nil {
		return 0, errors.New("heap memory has no executor")
	}
	return m.exec.Execute(m.code, m.data, m.dataBase, uint32(m.entry))
}

// Read implements Memory.
func (m *HeapMemory) Read(r Region, offset, size uint32) ([]byte, error) {
	buf, err := m.region(r)
	if err != nil {
		return nil, err
	}
	if *buf == nil {
		return nil, fmt.Errorf("read %s: %w", r, ErrNotAllocated)
	}
	if err := bounds(r, len(*buf), offset, size); err != nil {
		return nil, err
	}
	return bytes.Clone((*buf)[offset : offset+size]), nil
}

// CodeSize returns the allocated size of the code region.
func (m *HeapMemory) CodeSize() uint32 { return uint32(len(m.code)) }
