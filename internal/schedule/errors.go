package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/stitch/internal/graph"
)

// CyclicGraphError is returned when no topological order exists.
//
// Graphs built through the graph package are acyclic by construction, so
// this only fires for hand-made edge sets.
type CyclicGraphError struct {
	// Ordered is the number of nodes placed before the sort got stuck.
	Ordered int

	// Total is the number of distinct nodes in the edge set.
	Total int

	// Cycle is one offending cycle, first node repeated at the end.
	Cycle []graph.NodeID
}

// Error implements the error interface.
func (e *CyclicGraphError) Error() string {
	msg := fmt.Sprintf("graph contains a cycle: ordered %d of %d nodes", e.Ordered, e.Total)
	if len(e.Cycle) == 0 {
		return msg
	}
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return msg + " (" + strings.Join(parts, " → ") + ")"
}

// IsCyclicGraph reports whether err is a CyclicGraphError.
// Uses errors.As to handle wrapped errors.
func IsCyclicGraph(err error) bool {
	var ce *CyclicGraphError
	return errors.As(err, &ce)
}

// ArityError is returned when a node consumes more nets than there are
// register slots.
type ArityError struct {
	Node  graph.NodeID
	Name  string
	Arity int
}

// Error implements the error interface.
func (e *ArityError) Error() string {
	return fmt.Sprintf("node %d (%s) takes %d operands, at most %d fit in registers", e.Node, e.Name, e.Arity, Slots)
}
