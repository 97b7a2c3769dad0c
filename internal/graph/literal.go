package graph

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Literal is the value carried by a constant node.
// Int and Bool literals use I; Float literals use F.
type Literal struct {
	Dtype Dtype
	I     int64
	F     float64
}

// LiteralOf converts a Go scalar into a Literal.
// Supported: bool, int, int32, int64, float32, float64.
func LiteralOf(v any) (Literal, error) {
	switch val := v.(type) {
	case bool:
		if val {
			return Literal{Dtype: Bool, I: 1}, nil
		}
		return Literal{Dtype: Bool}, nil
	case int:
		return Literal{Dtype: Int, I: int64(val)}, nil
	case int32:
		return Literal{Dtype: Int, I: int64(val)}, nil
	case int64:
		return Literal{Dtype: Int, I: val}, nil
	case float32:
		return Literal{Dtype: Float, F: float64(val)}, nil
	case float64:
		return Literal{Dtype: Float, F: val}, nil
	default:
		return Literal{}, fmt.Errorf("unsupported literal type %T", v)
	}
}

// Value returns the literal as a Go value: int64, float64 or bool.
func (l Literal) Value() any {
	switch l.Dtype {
	case Float:
		return l.F
	case Bool:
		return l.I != 0
	default:
		return l.I
	}
}

// String formats the literal for listings.
func (l Literal) String() string {
	switch l.Dtype {
	case Float:
		return fmt.Sprintf("%g", l.F)
	case Bool:
		return fmt.Sprintf("%t", l.I != 0)
	default:
		return fmt.Sprintf("%d", l.I)
	}
}

// Encode writes the literal into a heap cell of the given size.
// Ints and bools accept 1, 2, 4 or 8 bytes; floats accept 4 or 8.
func (l Literal) Encode(size int, order binary.ByteOrder) ([]byte, error) {
	buf := make([]byte, size)
	switch l.Dtype {
	case Float:
		switch size {
		case 4:
			order.PutUint32(buf, math.Float32bits(float32(l.F)))
		case 8:
			order.PutUint64(buf, math.Float64bits(l.F))
		default:
			return nil, fmt.Errorf("unsupported float size: %d bytes", size)
		}
	case Int, Bool:
		switch size {
		case 1:
			buf[0] = byte(l.I)
		case 2:
			order.PutUint16(buf, uint16(l.I))
		case 4:
			order.PutUint32(buf, uint32(int32(l.I)))
		case 8:
			order.PutUint64(buf, uint64(l.I))
		default:
			return nil, fmt.Errorf("unsupported int size: %d bytes", size)
		}
	default:
		return nil, fmt.Errorf("cannot encode literal of %s", l.Dtype)
	}
	return buf, nil
}

// DecodeLiteral reads a heap cell back into a Literal.
// Ints are sign-extended from the cell width.
func DecodeLiteral(dtype Dtype, data []byte, order binary.ByteOrder) (Literal, error) {
	switch dtype {
	case Float:
		switch len(data) {
		case 4:
			return Literal{Dtype: Float, F: float64(math.Float32frombits(order.Uint32(data)))}, nil
		case 8:
			return Literal{Dtype: Float, F: math.Float64frombits(order.Uint64(data))}, nil
		default:
			return Literal{}, fmt.Errorf("unsupported float size: %d bytes", len(data))
		}
	case Int, Bool:
		var v int64
		switch len(data) {
		case 1:
			v = int64(int8(data[0]))
		case 2:
			v = int64(int16(order.Uint16(data)))
		case 4:
			v = int64(int32(order.Uint32(data)))
		case 8:
			v = int64(order.Uint64(data))
		default:
			return Literal{}, fmt.Errorf("unsupported int size: %d bytes", len(data))
		}
		if dtype == Bool && v != 0 {
			v = 1
		}
		return Literal{Dtype: dtype, I: v}, nil
	default:
		return Literal{}, fmt.Errorf("cannot decode literal of %s", dtype)
	}
}
