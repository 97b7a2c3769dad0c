package command

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DecodeError reports a malformed stream.
type DecodeError struct {
	Pos    int
	Reason string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("command stream: %s at byte %d", e.Reason, e.Pos)
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Reader decodes records one at a time.
type Reader struct {
	order binary.ByteOrder
	data  []byte
	pos   int
}

// NewReader decodes data in the given byte order.
func NewReader(data []byte, order binary.ByteOrder) *Reader {
	return &Reader{order: order, data: data}
}

func (r *Reader) u32(start int) (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, &DecodeError{Pos: start, Reason: "truncated record"}
	}
	v := r.order.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// Next returns the next record, or io.EOF at the end of data.
func (r *Reader) Next() (Record, error) {
	if r.pos == len(r.data) {
		return Record{}, io.EOF
	}
	start := r.pos
	op, err := r.u32(start)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Op: Opcode(op), Pos: start}

	switch rec.Op {
	case FreeMemory, RunProg, EndCom, DumpCode:
	case AllocateData, AllocateCode:
		rec.Size, err = r.u32(start)
	case EntryPoint:
		rec.Offset, err = r.u32(start)
	case ReadData:
		if rec.Offset, err = r.u32(start); err == nil {
			rec.Size, err = r.u32(start)
		}
	case CopyData, CopyCode:
		if rec.Offset, err = r.u32(start); err == nil {
			rec.Size, err = r.u32(start)
		}
		if err == nil {
			if r.pos+int(rec.Size) > len(r.data) {
				return Record{}, &DecodeError{Pos: start, Reason: fmt.Sprintf("payload of %d bytes past end", rec.Size)}
			}
			rec.Data = r.data[r.pos : r.pos+int(rec.Size)]
			r.pos += int(rec.Size)
		}
	case PatchFunc, PatchObject:
		if rec.Offset, err = r.u32(start); err == nil {
			rec.Kind, err = r.u32(start)
		}
		if err == nil {
			var v uint32
			v, err = r.u32(start)
			rec.Value = int32(v)
		}
	default:
		return Record{}, &DecodeError{Pos: start, Reason: fmt.Sprintf("unknown opcode %#x", op)}
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Decode reads every record in data.
func Decode(data []byte, order binary.ByteOrder) ([]Record, error) {
	r := NewReader(data, order)
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}
