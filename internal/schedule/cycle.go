package schedule

import "github.com/roach88/stitch/internal/graph"

// findCycle returns one cycle of the edge set as a node path that starts
// and ends at the same node, or nil if there is none.
//
// It runs Tarjan's algorithm, visiting nodes in discovery order so the
// reported cycle is deterministic.
func findCycle(nodes []graph.NodeID, adj map[graph.NodeID][]graph.NodeID) []graph.NodeID {
	var (
		index   = 0
		stack   []graph.NodeID
		indices = make(map[graph.NodeID]int)
		lowlink = make(map[graph.NodeID]int)
		onStack = make(map[graph.NodeID]bool)
		found   []graph.NodeID
	)

	var strongConnect func(v graph.NodeID)
	strongConnect = func(v graph.NodeID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []graph.NodeID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if found == nil && (len(scc) > 1 || hasSelfLoop(v, adj)) {
				found = cyclePath(scc, adj)
			}
		}
	}

	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return found
}

func hasSelfLoop(v graph.NodeID, adj map[graph.NodeID][]graph.NodeID) bool {
	for _, w := range adj[v] {
		if w == v {
			return true
		}
	}
	return false
}

// cyclePath follows edges inside one strongly connected component until a
// node repeats, and returns the closed path.
func cyclePath(scc []graph.NodeID, adj map[graph.NodeID][]graph.NodeID) []graph.NodeID {
	members := make(map[graph.NodeID]bool, len(scc))
	start := scc[0]
	for _, n := range scc {
		members[n] = true
		if n < start {
			start = n
		}
	}

	seen := make(map[graph.NodeID]int)
	var path []graph.NodeID
	for cur := start; ; {
		if at, ok := seen[cur]; ok {
			return append(path[at:], cur)
		}
		seen[cur] = len(path)
		path = append(path, cur)
		for _, next := range adj[cur] {
			if members[next] {
				cur = next
				break
			}
		}
	}
}
