package assemble

import (
	"errors"
	"fmt"

	"github.com/roach88/stitch/internal/stencil"
)

// MissingStencilError is returned when a scheduled step names a stencil
// the database does not define.
type MissingStencilError struct {
	Name string
}

// Error implements the error interface.
func (e *MissingStencilError) Error() string {
	return fmt.Sprintf("stencil %s not found in database", e.Name)
}

// UnknownRelocationKindError is returned for a relocation the assembler
// cannot resolve to a heap object, function or section.
type UnknownRelocationKindError struct {
	Function string
	Symbol   string
	Target   stencil.TargetKind
	Offset   int
}

// Error implements the error interface.
func (e *UnknownRelocationKindError) Error() string {
	return fmt.Sprintf("%s: cannot resolve %s relocation to %s at offset %d", e.Function, e.Target, e.Symbol, e.Offset)
}

// IsMissingStencil reports whether err is a MissingStencilError.
func IsMissingStencil(err error) bool {
	var ms *MissingStencilError
	return errors.As(err, &ms)
}

// IsUnknownRelocationKind reports whether err is an UnknownRelocationKindError.
func IsUnknownRelocationKind(err error) bool {
	var ur *UnknownRelocationKindError
	return errors.As(err, &ur)
}
