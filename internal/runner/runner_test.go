package runner

import (
	"encoding/binary"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stitch/internal/command"
	"github.com/roach88/stitch/internal/stencil"
)

// recordingExecutor captures the state Run hands over.
type recordingExecutor struct {
	code, data []byte
	dataBase   int64
	entry      uint32
	ret        int32
	err        error
}

func (e *recordingExecutor) Execute(code, data []byte, dataBase int64, entry uint32) (int32, error) {
	e.code = append([]byte(nil), code...)
	e.data = append([]byte(nil), data...)
	e.dataBase, e.entry = dataBase, entry
	if len(data) >= 4 {
		data[0] = 0x2A
	}
	return e.ret, e.err
}

func TestExecuteBuildsMemory(t *testing.T) {
	exec := &recordingExecutor{ret: 1}
	mem := NewHeapMemory(binary.LittleEndian, exec, 0x1000)
	w := command.NewWriter(binary.LittleEndian)
	w.FreeMemory()
	w.AllocateData(8)
	w.CopyData(4, []byte{1, 2, 3, 4})
	w.AllocateCode(12)
	w.CopyCode(0, []byte{0xF0, 0, 0, 0, 0, 0xAA, 0, 0, 0, 0, 0xC3, 0x90})
	require.NoError(t, w.Patch(command.PatchFunc, 1, 0, -7))
	require.NoError(t, w.Patch(command.PatchObject, 6, 0, -10))
	w.EntryPoint(0)
	w.RunProg()
	w.ReadData(0, 8)
	w.EndCom()

	out, err := New(mem).Execute(w.Bytes())
	require.NoError(t, err)

	assert.Equal(t, []byte{0xF9, 0xFF, 0xFF, 0xFF}, exec.code[1:5])
	// PATCH_OBJECT adds the data offset: -10 + 0x1000 = 0xFF6.
	assert.Equal(t, []byte{0xF6, 0x0F, 0, 0}, exec.code[6:10])
	assert.Equal(t, int64(0x1000), exec.dataBase)
	assert.Equal(t, uint32(0), exec.entry)
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, exec.data)

	require.Len(t, out, 1)
	assert.Equal(t, command.ReadData, out[0].Op)
	assert.Equal(t, []byte{0x2A, 0, 0, 0, 1, 2, 3, 4}, out[0].Data)
}

func TestExecuteRequiresEndCom(t *testing.T) {
	w := command.NewWriter(binary.LittleEndian)
	w.FreeMemory()

	_, err := New(NewHeapMemory(binary.LittleEndian, nil, 0)).Execute(w.Bytes())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "without END_COM")
}

func TestExecuteReportsFailingCommand(t *testing.T) {
	w := command.NewWriter(binary.LittleEndian)
	w.AllocateData(4)
	w.CopyData(2, []byte{1, 2, 3, 4})
	w.EndCom()

	_, err := New(NewHeapMemory(binary.LittleEndian, nil, 0)).Execute(w.Bytes())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY_DATA at byte 8")
	assert.Contains(t, err.Error(), "exceed size 4")
}

func TestExecuteBeforeAllocation(t *testing.T) {
	w := command.NewWriter(binary.LittleEndian)
	w.CopyCode(0, []byte{1})
	w.EndCom()

	_, err := New(NewHeapMemory(binary.LittleEndian, nil, 0)).Execute(w.Bytes())

	assert.ErrorIs(t, err, ErrNotAllocated)
}

func TestRunWithoutEntryPoint(t *testing.T) {
	w := command.NewWriter(binary.LittleEndian)
	w.AllocateCode(4)
	w.RunProg()
	w.EndCom()

	_, err := New(NewHeapMemory(binary.LittleEndian, &recordingExecutor{}, 0)).Execute(w.Bytes())

	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestRunPropagatesExecutorError(t *testing.T) {
	boom := errors.New("boom")
	w := command.NewWriter(binary.LittleEndian)
	w.AllocateCode(4)
	w.EntryPoint(0)
	w.RunProg()
	w.EndCom()

	_, err := New(NewHeapMemory(binary.LittleEndian, &recordingExecutor{err: boom}, 0)).Execute(w.Bytes())

	assert.ErrorIs(t, err, boom)
}

func TestDumpCode(t *testing.T) {
	w := command.NewWriter(binary.BigEndian)
	w.AllocateCode(3)
	w.CopyCode(0, []byte{7, 8, 9})
	w.DumpCode()
	w.EndCom()

	out, err := New(NewHeapMemory(binary.BigEndian, nil, 0)).Execute(w.Bytes())
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, command.DumpCode, out[0].Op)
	assert.Equal(t, []byte{7, 8, 9}, out[0].Data)
}

func TestFreeMemoryResets(t *testing.T) {
	mem := NewHeapMemory(binary.LittleEndian, nil, 0)
	require.NoError(t, mem.Allocate(RegionData, 4))
	require.NoError(t, mem.Free())

	_, err := mem.Read(RegionData, 0, 4)

	assert.ErrorIs(t, err, ErrNotAllocated)
}

func TestApplyPatchRelative32(t *testing.T) {
	code := make([]byte, 8)

	require.NoError(t, applyPatch(code, binary.BigEndian, 2, stencil.PatchRelative32, -2))

	assert.Equal(t, []byte{0, 0, 0xFF, 0xFF, 0xFF, 0xFE, 0, 0}, code)
}

func TestApplyPatchBranch26(t *testing.T) {
	// bl #0 with the immediate field cleared.
	code := []byte{0x00, 0x00, 0x00, 0x94}

	require.NoError(t, applyPatch(code, binary.LittleEndian, 0, stencil.PatchBranch26, -8))

	assert.Equal(t, uint32(0x97FFFFFE), binary.LittleEndian.Uint32(code))
}

func TestApplyPatchErrors(t *testing.T) {
	code := make([]byte, 8)

	assert.Error(t, applyPatch(code, binary.LittleEndian, 6, stencil.PatchRelative32, 0))
	assert.Error(t, applyPatch(code, binary.LittleEndian, 0, stencil.PatchBranch26, 6))
	assert.Error(t, applyPatch(code, binary.LittleEndian, 0, stencil.PatchBranch26, 1<<28))
	assert.Error(t, applyPatch(code, binary.LittleEndian, 0, stencil.PatchUnsupported, 0))
}

func TestNativeSupportedPlatforms(t *testing.T) {
	want := runtime.GOOS == "linux" && runtime.GOARCH == "amd64"
	assert.Equal(t, want, NativeSupported)

	mem, err := NewNativeMemory()
	if want {
		require.NoError(t, err)
		require.NoError(t, mem.Free())
		return
	}
	assert.ErrorIs(t, err, ErrNativeUnsupported)
}
