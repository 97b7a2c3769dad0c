//go:build linux && amd64

package runner

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/cpu"
	"golang.org/x/sys/unix"

	"github.com/roach88/stitch/internal/stencil"
)

// NativeSupported reports whether NativeMemory can execute on this platform.
const NativeSupported = true

// NativeMemory maps anonymous pages for both regions and calls the entry
// point as a C function returning int. The code region is writable while
// the stream builds it and switches to read+execute for Run.
type NativeMemory struct {
	// code and data are whole mappings; the sizes are what the stream
	// allocated.
	code, data         []byte
	codeSize, dataSize uint32
	executable         bool
	entry              int64
}

// NewNativeMemory creates an empty NativeMemory.
func NewNativeMemory() (*NativeMemory, error) {
	return &NativeMemory{entry: -1}, nil
}

// ByteOrder implements Memory.
func (m *NativeMemory) ByteOrder() binary.ByteOrder {
	if cpu.IsBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Free implements Memory.
func (m *NativeMemory) Free() error {
	for _, buf := range []*[]byte{&m.code, &m.data} {
		if *buf == nil {
			continue
		}
		if err := unix.Munmap(*buf); err != nil {
			return fmt.Errorf("munmap: %w", err)
		}
		*buf = nil
	}
	m.codeSize, m.dataSize, m.executable, m.entry = 0, 0, false, -1
	return nil
}

func (m *NativeMemory) region(r Region) (*[]byte, *uint32, error) {
	switch r {
	case RegionCode:
		return &m.code, &m.codeSize, nil
	case RegionData:
		return &m.data, &m.dataSize, nil
	}
	return nil, nil, fmt.Errorf("unknown %s", r)
}

// Allocate implements Memory.
func (m *NativeMemory) Allocate(r Region, size uint32) error {
	buf, bufSize, err := m.region(r)
	if err != nil {
		return err
	}
	if *buf != nil {
		if err := unix.Munmap(*buf); err != nil {
			return fmt.Errorf("munmap: %w", err)
		}
		*buf = nil
	}
	length := int(size)
	if length == 0 {
		length = 1
	}
	mem, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return fmt.Errorf("mmap %s region: %w", r, err)
	}
	*buf, *bufSize = mem, size
	if r == RegionCode {
		m.executable = false
	}
	return nil
}

func (m *NativeMemory) writable() error {
	if !m.executable {
		return nil
	}
	if err := unix.Mprotect(m.code, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("mprotect code writable: %w", err)
	}
	m.executable = false
	return nil
}

// Copy implements Memory.
func (m *NativeMemory) Copy(r Region, offset uint32, data []byte) error {
	buf, size, err := m.region(r)
	if err != nil {
		return err
	}
	if *buf == nil {
		return fmt.Errorf("copy to %s: %w", r, ErrNotAllocated)
	}
	if err := bounds(r, int(*size), offset, uint32(len(data))); err != nil {
		return err
	}
	if r == RegionCode {
		if err := m.writable(); err != nil {
			return err
		}
	}
	copy((*buf)[offset:], data)
	return nil
}

// Patch implements Memory.
func (m *NativeMemory) Patch(offset uint32, kind stencil.PatchKind, value int32) error {
	if m.code == nil {
		return fmt.Errorf("patch: %w", ErrNotAllocated)
	}
	if err := m.writable(); err != nil {
		return err
	}
	return applyPatch(m.code[:m.codeSize], m.ByteOrder(), offset, kind, value)
}

// DataOffset implements Memory.
func (m *NativeMemory) DataOffset() (int64, error) {
	if m.code == nil || m.data == nil {
		return 0, ErrNotAllocated
	}
	code := uintptr(unsafe.Pointer(unsafe.SliceData(m.code)))
	data := uintptr(unsafe.Pointer(unsafe.SliceData(m.data)))
	return int64(data) - int64(code), nil
}

// SetEntry implements Memory.
func (m *NativeMemory) SetEntry(offset uint32) error {
	if offset >= m.codeSize {
		return fmt.Errorf("entry point %d outside code of %d bytes", offset, m.codeSize)
	}
	m.entry = int64(offset)
	return nil
}

// Run implements Memory.
func (m *NativeMemory) Run() (int32, error) {
	if m.entry < 0 {
		return 0, ErrNoEntryPoint
	}
	if !m.executable {
		if err := unix.Mprotect(m.code, unix.PROT_READ|unix.PROT_EXEC); err != nil {
			return 0, fmt.Errorf("mprotect code executable: %w", err)
		}
		m.executable = true
	}
	fn := uintptr(unsafe.Pointer(unsafe.SliceData(m.code))) + uintptr(m.entry)
	r1, _, _ := purego.SyscallN(fn)
	return int32(r1), nil
}

// Read implements Memory.
func (m *NativeMemory) Read(r Region, offset, size uint32) ([]byte, error) {
	buf, have, err := m.region(r)
	if err != nil {
		return nil, err
	}
	if *buf == nil {
		return nil, fmt.Errorf("read %s: %w", r, ErrNotAllocated)
	}
	if err := bounds(r, int(*have), offset, size); err != nil {
		return nil, err
	}
	return bytes.Clone((*buf)[offset : offset+size]), nil
}

// CodeSize implements Memory.
func (m *NativeMemory) CodeSize() uint32 { return m.codeSize }
