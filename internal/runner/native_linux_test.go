//go:build linux && amd64

package runner

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeMemoryRegions(t *testing.T) {
	mem, err := NewNativeMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Free() })

	require.NoError(t, mem.Allocate(RegionData, 8))
	require.NoError(t, mem.Allocate(RegionCode, 16))
	require.NoError(t, mem.Copy(RegionData, 4, []byte{1, 2, 3, 4}))

	got, err := mem.Read(RegionData, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, got)
	assert.Equal(t, uint32(16), mem.CodeSize())

	_, err = mem.DataOffset()
	require.NoError(t, err)

	assert.Error(t, mem.Copy(RegionCode, 14, []byte{1, 2, 3}))
	assert.Error(t, mem.SetEntry(16))
}

func TestNativeMemoryRunsCode(t *testing.T) {
	if runtime.GOARCH != "amd64" {
		t.Skip("hand-encoded test function is x86-64")
	}
	mem, err := NewNativeMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Free() })

	// mov eax, 7; ret
	require.NoError(t, mem.Allocate(RegionCode, 6))
	require.NoError(t, mem.Copy(RegionCode, 0, []byte{0xB8, 0x07, 0, 0, 0, 0xC3}))
	require.NoError(t, mem.SetEntry(0))

	ret, err := mem.Run()
	require.NoError(t, err)
	assert.Equal(t, int32(7), ret)

	// Patching after a run makes the region writable again.
	require.NoError(t, mem.Patch(1, 0, 9))
	ret, err = mem.Run()
	require.NoError(t, err)
	assert.Equal(t, int32(9), ret)
}
