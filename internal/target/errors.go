package target

import (
	"errors"
	"fmt"

	"github.com/roach88/stitch/internal/graph"
)

// ValueNotCompiledError is returned when reading or writing a net that
// the last Compile did not place on the heap.
type ValueNotCompiledError struct {
	Net graph.NetID
}

// Error implements the error interface.
func (e *ValueNotCompiledError) Error() string {
	return fmt.Sprintf("value of net %d was not compiled", e.Net)
}

// IsValueNotCompiled reports whether err is a ValueNotCompiledError.
func IsValueNotCompiled(err error) bool {
	var vn *ValueNotCompiledError
	return errors.As(err, &vn)
}

// ErrNotCompiled is returned by Run before the first Compile.
var ErrNotCompiled = errors.New("target has no compiled program")
