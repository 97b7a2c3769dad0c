package graph

import (
	"errors"
	"fmt"
	"strings"
)

// UnsupportedOperationError is returned when no stencil exists for an
// operation and operand dtype combination.
type UnsupportedOperationError struct {
	Op     string
	Dtypes []Dtype
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	names := make([]string, len(e.Dtypes))
	for i, d := range e.Dtypes {
		names[i] = d.String()
	}
	return fmt.Sprintf("operation %s not implemented for %s", e.Op, strings.Join(names, " and "))
}

// IsUnsupportedOperation reports whether err is an UnsupportedOperationError.
// Uses errors.As to handle wrapped errors.
func IsUnsupportedOperation(err error) bool {
	var uo *UnsupportedOperationError
	return errors.As(err, &uo)
}
