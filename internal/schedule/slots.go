package schedule

import (
	"fmt"
	"strings"

	"github.com/roach88/stitch/internal/graph"
)

// slotName returns the stencil spelling of a register's current dtype.
func slotName(g *graph.Graph, net graph.NetID) string {
	if net == graph.NoNet {
		return graph.Int.String()
	}
	return g.Net(net).Dtype.StencilName()
}

func regsSuffix(g *graph.Graph, regs [Slots]graph.NetID) string {
	parts := make([]string, Slots)
	for i, net := range regs {
		parts[i] = slotName(g, net)
	}
	return strings.Join(parts, "_")
}

// LoadName is the stencil that loads a net of dtype target into slot while
// the registers hold regs.
func LoadName(g *graph.Graph, target graph.Dtype, slot int, regs [Slots]graph.NetID) string {
	return fmt.Sprintf("read_%s_reg%d_%s", target.StencilName(), slot, regsSuffix(g, regs))
}

// StoreName is the stencil that writes slot 0 to the heap while the
// registers hold regs.
func StoreName(g *graph.Graph, regs [Slots]graph.NetID) string {
	return fmt.Sprintf("write_%s_reg0_%s", slotName(g, regs[0]), regsSuffix(g, regs))
}

// InsertLoads turns a topological node order into fragment steps,
// synthesizing a load whenever an operand is not already in its slot.
//
// Constant nodes produce no step; their nets live on the heap from the
// start. After an op its result occupies slot 0.
func InsertLoads(g *graph.Graph, order []graph.NodeID) ([]Step, error) {
	regs := [Slots]graph.NetID{graph.NoNet, graph.NoNet}
	var steps []Step

	for _, id := range order {
		node := g.Node(id)
		if node.Kind == graph.KindConstant {
			continue
		}
		if len(node.Args) > Slots {
			return nil, &ArityError{Node: id, Name: node.Name, Arity: len(node.Args)}
		}

		for i, net := range node.Args {
			if regs[i] == net {
				continue
			}
			name := LoadName(g, g.Net(net).Dtype, i, regs)
			regs[i] = net
			steps = append(steps, Step{
				Kind: StepLoad,
				Name: name,
				Node: -1,
				Net:  net,
				Slot: i,
				Regs: regs,
			})
		}

		switch node.Kind {
		case graph.KindStore:
			steps = append(steps, Step{
				Kind: StepStore,
				Name: StoreName(g, regs),
				Node: id,
				Net:  node.Args[0],
				Regs: regs,
			})
		default:
			regs[0] = node.Result
			steps = append(steps, Step{
				Kind: StepOp,
				Name: node.Name,
				Node: id,
				Net:  node.Result,
				Regs: regs,
			})
		}
	}
	return steps, nil
}

// InsertStores adds a spill right after the op producing any net that a
// load reads back and that is not already heap-backed. heapNets seeds the
// heap-backed set (the constants). Each net is spilled at most once.
func InsertStores(g *graph.Graph, steps []Step, heapNets []graph.NetID) []Step {
	stored := make(map[graph.NetID]bool, len(heapNets))
	for _, n := range heapNets {
		stored[n] = true
	}
	readBack := make(map[graph.NetID]bool)
	for _, s := range steps {
		if s.Kind == StepLoad {
			readBack[s.Net] = true
		}
	}

	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		out = append(out, s)
		if s.Kind != StepOp || !readBack[s.Net] || stored[s.Net] {
			continue
		}
		out = append(out, Step{
			Kind: StepSpill,
			Name: StoreName(g, s.Regs),
			Node: -1,
			Net:  s.Net,
			Regs: s.Regs,
		})
		stored[s.Net] = true
	}
	return out
}
