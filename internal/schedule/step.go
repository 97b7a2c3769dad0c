package schedule

import (
	"fmt"

	"github.com/roach88/stitch/internal/graph"
)

// Slots is the number of simulated registers.
const Slots = 2

// StepKind distinguishes the fragments of a plan.
type StepKind uint8

const (
	// StepOp runs a typed operation from the graph.
	StepOp StepKind = iota + 1
	// StepLoad moves a heap net into one register slot.
	StepLoad
	// StepSpill writes a freshly produced net to the heap for a later load.
	StepSpill
	// StepStore writes a requested output to the heap.
	StepStore
)

func (k StepKind) String() string {
	switch k {
	case StepOp:
		return "op"
	case StepLoad:
		return "load"
	case StepSpill:
		return "spill"
	case StepStore:
		return "store"
	default:
		return fmt.Sprintf("step(%d)", uint8(k))
	}
}

// Step is one fragment in the linear schedule.
type Step struct {
	Kind StepKind

	// Name is the stencil to stitch in.
	Name string

	// Node is the graph node for StepOp and StepStore, -1 otherwise.
	Node graph.NodeID

	// Net is the heap net a load, spill or store moves. For StepOp it is
	// the produced net.
	Net graph.NetID

	// Slot is the register a load fills.
	Slot int

	// Regs holds the register contents after the step runs.
	Regs [Slots]graph.NetID
}

// Heap reports whether the step moves a net between a register and the heap.
func (s Step) Heap() bool {
	return s.Kind == StepLoad || s.Kind == StepSpill || s.Kind == StepStore
}

func (s Step) String() string {
	if s.Kind == StepOp {
		return s.Name
	}
	return fmt.Sprintf("%s net=%d", s.Name, s.Net)
}
