package schedule

import "github.com/roach88/stitch/internal/graph"

// Edge is a dependency From → To: To consumes a net produced by From.
type Edge struct {
	From graph.NodeID
	To   graph.NodeID
}

// CollectEdges walks the graph depth-first from roots along consumed nets
// and returns every producer → consumer edge it crosses.
//
// An edge is emitted once per consumed operand, so a node that takes the
// same net twice (unary ops) yields a duplicate edge. Each node's subgraph
// is walked only once; revisiting it would emit only nodes that were
// already discovered, so the discovery order is the same either way.
func CollectEdges(g *graph.Graph, roots []graph.NodeID) []Edge {
	var edges []Edge
	visited := make(map[graph.NodeID]bool)

	var walk func(id graph.NodeID)
	walk = func(id graph.NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		args := g.Args(id)
		for _, net := range args {
			walk(g.Producer(net))
		}
		for _, net := range args {
			edges = append(edges, Edge{From: g.Producer(net), To: id})
		}
	}

	for _, r := range roots {
		walk(r)
	}
	return edges
}
