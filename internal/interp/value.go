package interp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roach88/stitch/internal/graph"
)

// Value is the content of one register slot or heap cell.
// Stencils only know int and float; bools travel as ints.
type Value struct {
	Float bool
	I     int32
	F     float32
}

// Int returns an int Value.
func Int(v int32) Value { return Value{I: v} }

// Float returns a float Value.
func Float(v float32) Value { return Value{Float: true, F: v} }

// Dtype returns the stencil dtype of the value.
func (v Value) Dtype() graph.Dtype {
	if v.Float {
		return graph.Float
	}
	return graph.Int
}

// AsFloat converts the value the way a C (float) cast does.
func (v Value) AsFloat() float32 {
	if v.Float {
		return v.F
	}
	return float32(v.I)
}

// AsInt converts the value the way a C (int) cast does: truncation toward zero.
func (v Value) AsInt() int32 {
	if v.Float {
		return int32(v.F)
	}
	return v.I
}

func (v Value) String() string {
	if v.Float {
		return fmt.Sprintf("%g", v.F)
	}
	return fmt.Sprintf("%d", v.I)
}

// Encode writes the value as a 4-byte cell.
func (v Value) Encode(order binary.ByteOrder) []byte {
	buf := make([]byte, 4)
	if v.Float {
		order.PutUint32(buf, math.Float32bits(v.F))
	} else {
		order.PutUint32(buf, uint32(v.I))
	}
	return buf
}

// DecodeValue reads a 4-byte cell of the given stencil dtype.
func DecodeValue(dtype graph.Dtype, cell []byte, order binary.ByteOrder) Value {
	bits := order.Uint32(cell)
	if dtype == graph.Float {
		return Float(math.Float32frombits(bits))
	}
	return Int(int32(bits))
}

// FromLiteral converts a constant literal to its stencil representation.
func FromLiteral(l graph.Literal) Value {
	if l.Dtype == graph.Float {
		return Float(float32(l.F))
	}
	return Int(int32(l.I))
}

// ToLiteral converts a value to a literal of the graph dtype d.
func (v Value) ToLiteral(d graph.Dtype) graph.Literal {
	switch d {
	case graph.Float:
		return graph.Literal{Dtype: graph.Float, F: float64(v.AsFloat())}
	case graph.Bool:
		if v.AsInt() != 0 {
			return graph.Literal{Dtype: graph.Bool, I: 1}
		}
		return graph.Literal{Dtype: graph.Bool}
	default:
		return graph.Literal{Dtype: graph.Int, I: int64(v.AsInt())}
	}
}
