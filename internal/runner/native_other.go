//go:build !(linux && amd64)

package runner

import (
	"encoding/binary"

	"github.com/roach88/stitch/internal/stencil"
)

// NativeSupported reports whether NativeMemory can execute on this platform.
const NativeSupported = false

// NativeMemory is unavailable on this platform.
type NativeMemory struct{}

// NewNativeMemory always fails on this platform.
func NewNativeMemory() (*NativeMemory, error) { return nil, ErrNativeUnsupported }

func (*NativeMemory) ByteOrder() binary.ByteOrder { return binary.LittleEndian }
func (*NativeMemory) Free() error { return nil }
func (*NativeMemory) Allocate(Region, uint32) error { return ErrNativeUnsupported }
func (*NativeMemory) Copy(Region, uint32, []byte) error { return ErrNativeUnsupported }
func (*NativeMemory) Patch(uint32, stencil.PatchKind, int32) error { return ErrNativeUnsupported }
func (*NativeMemory) DataOffset() (int64, error) { return 0, ErrNativeUnsupported }
func (*NativeMemory) SetEntry(uint32) error { return ErrNativeUnsupported }
func (*NativeMemory) Run() (int32, error) { return 0, ErrNativeUnsupported }
func (*NativeMemory) Read(Region, uint32, uint32) ([]byte, error) { return nil, ErrNativeUnsupported }
func (*NativeMemory) CodeSize() uint32 { return 0 }
