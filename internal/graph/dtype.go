package graph

import "fmt"

// Dtype is the scalar type carried by a Net.
type Dtype uint8

const (
	// Invalid is the zero Dtype and never appears on a Net.
	Invalid Dtype = iota
	Int
	Float
	Bool
)

// String returns the dtype name used in typed operation names.
func (d Dtype) String() string {
	switch d {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// StencilName returns the name used for this dtype in stencil symbols.
// Bools are stored and passed as ints, so there are no bool stencils.
func (d Dtype) StencilName() string {
	if d == Bool {
		return Int.String()
	}
	return d.String()
}

// ParseDtype parses "int", "float" or "bool".
func ParseDtype(s string) (Dtype, error) {
	switch s {
	case "int":
		return Int, nil
	case "float":
		return Float, nil
	case "bool":
		return Bool, nil
	default:
		return Invalid, fmt.Errorf("unknown dtype %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Dtype) MarshalText() ([]byte, error) {
	if d == Invalid {
		return nil, fmt.Errorf("cannot marshal invalid dtype")
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Dtype) UnmarshalText(text []byte) error {
	parsed, err := ParseDtype(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
