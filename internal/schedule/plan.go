package schedule

import (
	"fmt"

	"github.com/roach88/stitch/internal/graph"
)

// Plan is a scheduled graph ready for assembly.
type Plan struct {
	// Steps is the fragment sequence, in execution order.
	Steps []Step

	// Order is the topological node order the steps were derived from.
	Order []graph.NodeID

	// Constants are the constant nets reachable from the roots, in order.
	Constants []graph.NetID

	// HeapNets are the nets that need a heap cell: constants first, then
	// the nets of load, spill and store steps in first-appearance order.
	HeapNets []graph.NetID
}

// Schedule runs all scheduling passes for the given Store roots.
func Schedule(g *graph.Graph, roots []graph.NodeID) (*Plan, error) {
	for _, r := range roots {
		if r < 0 || int(r) >= g.NumNodes() {
			return nil, fmt.Errorf("schedule: unknown root node %d", r)
		}
		if g.Kind(r) != graph.KindStore {
			return nil, fmt.Errorf("schedule: root %d is a %s node, not a store", r, g.Kind(r))
		}
	}

	order, err := TopologicalOrder(CollectEdges(g, roots))
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	var constants []graph.NetID
	for _, id := range order {
		if g.Kind(id) == graph.KindConstant {
			constants = append(constants, g.Result(id))
		}
	}

	steps, err := InsertLoads(g, order)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	steps = InsertStores(g, steps, constants)

	heap := make([]graph.NetID, 0, len(constants))
	seen := make(map[graph.NetID]bool)
	for _, n := range constants {
		seen[n] = true
		heap = append(heap, n)
	}
	for _, s := range steps {
		if s.Heap() && !seen[s.Net] {
			seen[s.Net] = true
			heap = append(heap, s.Net)
		}
	}

	return &Plan{
		Steps:     steps,
		Order:     order,
		Constants: constants,
		HeapNets:  heap,
	}, nil
}

// StencilNames returns the stencil of every step, in order.
func (p *Plan) StencilNames() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Name
	}
	return names
}

// Stats summarises a plan.
type Stats struct {
	Nodes     int `json:"nodes"`
	Ops       int `json:"ops"`
	Loads     int `json:"loads"`
	Spills    int `json:"spills"`
	Stores    int `json:"stores"`
	Constants int `json:"constants"`
	HeapNets  int `json:"heap_nets"`
}

// Stats counts the fragments of each kind in the plan.
func (p *Plan) Stats() Stats {
	st := Stats{
		Nodes:     len(p.Order),
		Constants: len(p.Constants),
		HeapNets:  len(p.HeapNets),
	}
	for _, s := range p.Steps {
		switch s.Kind {
		case StepOp:
			st.Ops++
		case StepLoad:
			st.Loads++
		case StepSpill:
			st.Spills++
		case StepStore:
			st.Stores++
		}
	}
	return st
}
