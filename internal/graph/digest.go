package graph

import (
	"math"

	"github.com/roach88/stitch/internal/ir"
)

// Digest returns the content hash of the subgraph reachable from roots.
//
// Nodes are numbered in depth-first post-order from roots, so two graphs built by the same sequence of builder calls
// hash equally regardless of unrelated nodes in the arena. Float constants
// are hashed by their IEEE-754 bit pattern.
func (g *Graph) Digest(roots []NodeID) (string, error) {
	index := make(map[NodeID]int)
	var nodes ir.IRArray

	var visit func(id NodeID) int
	visit = func(id NodeID) int {
		if i, ok := index[id]; ok {
			return i
		}
		n := g.nodes[id]
		args := make(ir.IRArray, len(n.Args))
		for i, a := range n.Args {
			args[i] = ir.IRInt(visit(g.nets[a].Source))
		}
		obj := ir.IRObject{
			"kind": ir.IRString(n.Kind.String()),
			"name": ir.IRString(n.Name),
			"args": args,
		}
		if n.Kind == KindConstant {
			obj["dtype"] = ir.IRString(n.Value.Dtype.String())
			if n.Value.Dtype == Float {
				obj["bits"] = ir.IRInt(int64(math.Float64bits(n.Value.F)))
			} else {
				obj["value"] = ir.IRInt(n.Value.I)
			}
		}
		if n.Result != NoNet {
			obj["result"] = ir.IRString(g.nets[n.Result].Dtype.String())
		}
		index[id] = len(nodes)
		nodes = append(nodes, obj)
		return index[id]
	}

	rootIdx := make(ir.IRArray, len(roots))
	for i, r := range roots {
		rootIdx[i] = ir.IRInt(visit(r))
	}

	return ir.GraphHash(ir.IRObject{
		"nodes": nodes,
		"roots": rootIdx,
	})
}
