package command

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Opcode identifies a record type.
type Opcode uint32

// Opcodes, matching the reference runtime.
const (
	AllocateData Opcode = 1
	CopyData     Opcode = 2
	AllocateCode Opcode = 3
	CopyCode     Opcode = 4
	EntryPoint   Opcode = 7
	RunProg      Opcode = 64
	ReadData     Opcode = 65
	EndCom       Opcode = 256
	FreeMemory   Opcode = 257
	DumpCode     Opcode = 258
	PatchFunc    Opcode = 0x1000
	PatchObject  Opcode = 0x2000
)

var opcodeNames = map[Opcode]string{
	AllocateData: "ALLOCATE_DATA",
	CopyData:     "COPY_DATA",
	AllocateCode: "ALLOCATE_CODE",
	CopyCode:     "COPY_CODE",
	EntryPoint:   "ENTRY_POINT",
	RunProg:      "RUN_PROG",
	ReadData:     "READ_DATA",
	EndCom:       "END_COM",
	FreeMemory:   "FREE_MEMORY",
	DumpCode:     "DUMP_CODE",
	PatchFunc:    "PATCH_FUNC",
	PatchObject:  "PATCH_OBJECT",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE(%#x)", uint32(op))
}

// Record is one decoded command. Only the fields of its opcode are set.
type Record struct {
	Op Opcode

	// Pos is the byte position of the record in its stream.
	Pos int

	Offset uint32
	Size   uint32
	Kind   uint32
	Value  int32
	Data   []byte
}

// Writer builds a command stream.
type Writer struct {
	order   binary.ByteOrder
	buf     bytes.Buffer
	records []Record
}

// NewWriter creates an empty stream in the given byte order.
func NewWriter(order binary.ByteOrder) *Writer {
	return &Writer{order: order}
}

// ByteOrder returns the stream's byte order.
func (w *Writer) ByteOrder() binary.ByteOrder { return w.order }

func (w *Writer) u32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) begin(op Opcode) *Record {
	w.records = append(w.records, Record{Op: op, Pos: w.buf.Len()})
	w.u32(uint32(op))
	return &w.records[len(w.records)-1]
}

// FreeMemory releases the code and data regions of a previous compile.
func (w *Writer) FreeMemory() { w.begin(FreeMemory) }

// AllocateData reserves the data region.
func (w *Writer) AllocateData(size uint32) {
	r := w.begin(AllocateData)
	r.Size = size
	w.u32(size)
}

// AllocateCode reserves the code region.
func (w *Writer) AllocateCode(size uint32) {
	r := w.begin(AllocateCode)
	r.Size = size
	w.u32(size)
}

// CopyData copies bytes into the data region at offset.
func (w *Writer) CopyData(offset uint32, data []byte) { w.copyCmd(CopyData, offset, data) }

// CopyCode copies bytes into the code region at offset.
func (w *Writer) CopyCode(offset uint32, data []byte) { w.copyCmd(CopyCode, offset, data) }

func (w *Writer) copyCmd(op Opcode, offset uint32, data []byte) {
	r := w.begin(op)
	r.Offset = offset
	r.Size = uint32(len(data))
	r.Data = bytes.Clone(data)
	w.u32(offset)
	w.u32(uint32(len(data)))
	w.buf.Write(data)
}

// Patch emits PATCH_FUNC or PATCH_OBJECT for the code offset.
func (w *Writer) Patch(op Opcode, offset, kind uint32, value int32) error {
	if op != PatchFunc && op != PatchObject {
		return fmt.Errorf("patch: %s is not a patch command", op)
	}
	r := w.begin(op)
	r.Offset = offset
	r.Kind = kind
	r.Value = value
	w.u32(offset)
	w.u32(kind)
	w.u32(uint32(value))
	return nil
}

// EntryPoint marks the code offset execution starts at.
func (w *Writer) EntryPoint(offset uint32) {
	r := w.begin(EntryPoint)
	r.Offset = offset
	w.u32(offset)
}

// RunProg executes the program once.
func (w *Writer) RunProg() { w.begin(RunProg) }

// ReadData requests size bytes of the data region at offset.
func (w *Writer) ReadData(offset, size uint32) {
	r := w.begin(ReadData)
	r.Offset = offset
	r.Size = size
	w.u32(offset)
	w.u32(size)
}

// DumpCode asks the runtime to report the code region.
func (w *Writer) DumpCode() { w.begin(DumpCode) }

// EndCom terminates the stream.
func (w *Writer) EndCom() { w.begin(EndCom) }

// Bytes returns the encoded stream.
func (w *Writer) Bytes() []byte {
	return bytes.Clone(w.buf.Bytes())
}

// Records returns the records written so far.
func (w *Writer) Records() []Record {
	out := make([]Record, len(w.records))
	copy(out, w.records)
	return out
}

// Len returns the encoded size in bytes.
func (w *Writer) Len() int { return w.buf.Len() }

// Listing renders records as a stable, human-readable dump. Payloads are
// shown as hex, truncated after 32 bytes.
func Listing(records []Record) string {
	var sb strings.Builder
	for _, r := range records {
		var args string
		switch r.Op {
		case AllocateData, AllocateCode:
			args = fmt.Sprintf("size=%d", r.Size)
		case CopyData, CopyCode:
			args = fmt.Sprintf("offset=%d size=%d data=%s", r.Offset, r.Size, shortHex(r.Data))
		case PatchFunc, PatchObject:
			args = fmt.Sprintf("offset=%d kind=%d value=%d", r.Offset, r.Kind, r.Value)
		case EntryPoint:
			args = fmt.Sprintf("offset=%d", r.Offset)
		case ReadData:
			args = fmt.Sprintf("offset=%d size=%d", r.Offset, r.Size)
		}
		line := fmt.Sprintf("%06x  %-13s %s", r.Pos, r.Op, args)
		sb.WriteString(strings.TrimRight(line, " "))
		sb.WriteString("\n")
	}
	return sb.String()
}

func shortHex(data []byte) string {
	const limit = 32
	if len(data) <= limit {
		return hex.EncodeToString(data)
	}
	return hex.EncodeToString(data[:limit]) + fmt.Sprintf("...(+%d)", len(data)-limit)
}
