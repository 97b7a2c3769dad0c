package stencil

import (
	"errors"
	"fmt"
)

// MissingContinuationError is returned when a function used as a stencil
// does not end in a relocation to a result_* symbol.
type MissingContinuationError struct {
	Function string
}

// Error implements the error interface.
func (e *MissingContinuationError) Error() string {
	return fmt.Sprintf("function %s has no trailing result_* relocation", e.Function)
}

// UnsupportedRelocationError is returned when a relocation type has no
// patch translation for the object's architecture.
type UnsupportedRelocationError struct {
	Function string
	Type     string
	Offset   int
}

// Error implements the error interface.
func (e *UnsupportedRelocationError) Error() string {
	return fmt.Sprintf("function %s: unsupported relocation %s at offset %d", e.Function, e.Type, e.Offset)
}

// UnknownSymbolError is returned for queries about symbols or sections the
// object does not define.
type UnknownSymbolError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown symbol %q", e.Name)
}

// IsMissingContinuation reports whether err is a MissingContinuationError.
// Uses errors.As to handle wrapped errors.
func IsMissingContinuation(err error) bool {
	var mc *MissingContinuationError
	return errors.As(err, &mc)
}

// IsUnsupportedRelocation reports whether err is an UnsupportedRelocationError.
func IsUnsupportedRelocation(err error) bool {
	var ur *UnsupportedRelocationError
	return errors.As(err, &ur)
}

// IsUnknownSymbol reports whether err is an UnknownSymbolError.
func IsUnknownSymbol(err error) bool {
	var us *UnknownSymbolError
	return errors.As(err, &us)
}
