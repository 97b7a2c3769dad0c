package schedule

import (
	"container/heap"

	"github.com/roach88/stitch/internal/graph"
)

// TopologicalOrder sorts the nodes of edges so every node comes after all
// of its producers.
//
// Nodes are ranked by the position at which they first appear in edges.
// Among the nodes that are ready, the lowest rank always goes next, which
// makes the order a pure function of the edge sequence. Duplicate edges
// raise and lower a node's indegree by the same amount.
//
// Returns *CyclicGraphError if some nodes can never become ready.
func TopologicalOrder(edges []Edge) ([]graph.NodeID, error) {
	rank := make(map[graph.NodeID]int)
	var nodes []graph.NodeID
	discover := func(id graph.NodeID) {
		if _, ok := rank[id]; !ok {
			rank[id] = len(nodes)
			nodes = append(nodes, id)
		}
	}

	adj := make(map[graph.NodeID][]graph.NodeID)
	indeg := make(map[graph.NodeID]int)
	for _, e := range edges {
		discover(e.From)
		discover(e.To)
		adj[e.From] = append(adj[e.From], e.To)
		indeg[e.To]++
	}

	ready := &rankQueue{rank: rank}
	for _, id := range nodes {
		if indeg[id] == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]graph.NodeID, 0, len(nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(graph.NodeID)
		order = append(order, id)
		for _, next := range adj[id] {
			indeg[next]--
			if indeg[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, &CyclicGraphError{
			Ordered: len(order),
			Total:   len(nodes),
			Cycle:   findCycle(nodes, adj),
		}
	}
	return order, nil
}

// rankQueue is a min-heap of nodes keyed by discovery rank.
type rankQueue struct {
	ids  []graph.NodeID
	rank map[graph.NodeID]int
}

func (q *rankQueue) Len() int           { return len(q.ids) }
func (q *rankQueue) Less(i, j int) bool { return q.rank[q.ids[i]] < q.rank[q.ids[j]] }
func (q *rankQueue) Swap(i, j int)      { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }
func (q *rankQueue) Push(x any)         { q.ids = append(q.ids, x.(graph.NodeID)) }

func (q *rankQueue) Pop() any {
	n := len(q.ids)
	id := q.ids[n-1]
	q.ids = q.ids[:n-1]
	return id
}
