package graph

import (
	"fmt"
	"slices"
	"strings"
)

// NodeID is a stable handle to a Node in a Graph.
type NodeID int32

// NetID is a stable handle to a Net in a Graph.
type NetID int32

// NoNet marks a Node without a result (Store nodes).
const NoNet NetID = -1

// Kind distinguishes the node variants of the graph.
type Kind uint8

const (
	// KindConstant is a leaf carrying a literal value.
	KindConstant Kind = iota + 1
	// KindOp applies a typed operation to its ordered input nets.
	KindOp
	// KindStore marks a net as an externally requested output.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindOp:
		return "op"
	case KindStore:
		return "store"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Node is an operation, constant or store marker producing zero or one Net.
type Node struct {
	Kind Kind

	// Name is the typed operation name for KindOp ("add_float_int"),
	// "const_<dtype>" for constants and "store_<dtype>" for store markers.
	Name string

	// Args are the consumed nets, in operand order.
	Args []NetID

	// Value is set for KindConstant only.
	Value Literal

	// Result is the produced net, or NoNet for store markers.
	Result NetID
}

// Net is a typed value with exactly one producer.
type Net struct {
	Dtype  Dtype
	Source NodeID
}

// Catalog resolves typed operation names to result dtypes.
// Implemented by the stencil database and by the reference interpreter.
type Catalog interface {
	ResultDtype(typedOp string) (Dtype, bool)
}

// Graph is an append-only arena of nodes and nets.
//
// Graph is not safe for concurrent mutation. Once built it may be read
// from multiple goroutines.
type Graph struct {
	catalog Catalog
	nodes   []Node
	nets    []Net
}

// New creates an empty graph whose operations are validated against catalog.
func New(catalog Catalog) *Graph {
	return &Graph{catalog: catalog}
}

// commutative lists operations whose operands are canonically reordered.
var commutative = map[string]bool{
	"add":   true,
	"mul":   true,
	"eq":    true,
	"ne":    true,
	"bwand": true,
	"bwor":  true,
	"bwxor": true,
}

// comparisons produce bool nets even though their stencils return int.
var comparisons = map[string]bool{
	"gt": true,
	"ge": true,
	"eq": true,
	"ne": true,
}

// IsCommutative reports whether op reorders its operands by dtype name.
func IsCommutative(op string) bool {
	return commutative[op]
}

// TypedName builds the stencil name for op applied to operands of the
// given dtypes: "<op>_<dtype1>_<dtype2>" with bools spelled as ints.
func TypedName(op string, dtypes ...Dtype) string {
	parts := make([]string, 0, len(dtypes)+1)
	parts = append(parts, op)
	for _, d := range dtypes {
		parts = append(parts, d.StencilName())
	}
	return strings.Join(parts, "_")
}

// Constant adds a new constant node and returns its net.
// Every call creates a distinct net, even for equal values.
func (g *Graph) Constant(v any) (NetID, error) {
	lit, err := LiteralOf(v)
	if err != nil {
		return NoNet, err
	}
	return g.addConstant(lit), nil
}

func (g *Graph) addConstant(lit Literal) NetID {
	nodeID := NodeID(len(g.nodes))
	netID := NetID(len(g.nets))
	g.nodes = append(g.nodes, Node{
		Kind:   KindConstant,
		Name:   "const_" + lit.Dtype.String(),
		Value:  lit,
		Result: netID,
	})
	g.nets = append(g.nets, Net{Dtype: lit.Dtype, Source: nodeID})
	return netID
}

// Op adds a typed operation node.
//
// Operands are NetIDs from this graph or Go literals; literals become new
// constants. For commutative operations the operands are sorted by dtype
// name before the typed name is formed. Returns *UnsupportedOperationError
// if the catalog has no stencil for the combination.
func (g *Graph) Op(op string, operands ...any) (NetID, error) {
	args := make([]NetID, 0, len(operands))
	for i, operand := range operands {
		switch v := operand.(type) {
		case NetID:
			if !g.validNet(v) {
				return NoNet, fmt.Errorf("%s: operand %d: unknown net %d", op, i, v)
			}
			args = append(args, v)
		default:
			lit, err := LiteralOf(v)
			if err != nil {
				return NoNet, fmt.Errorf("%s: operand %d: %w", op, i, err)
			}
			args = append(args, g.addConstant(lit))
		}
	}

	if commutative[op] {
		slices.SortStableFunc(args, func(a, b NetID) int {
			return strings.Compare(g.nets[a].Dtype.String(), g.nets[b].Dtype.String())
		})
	}

	dtypes := make([]Dtype, len(args))
	for i, a := range args {
		dtypes[i] = g.nets[a].Dtype
	}
	name := TypedName(op, dtypes...)

	result, ok := g.catalog.ResultDtype(name)
	if !ok {
		return NoNet, &UnsupportedOperationError{Op: op, Dtypes: dtypes}
	}
	if comparisons[op] {
		result = Bool
	}

	nodeID := NodeID(len(g.nodes))
	netID := NetID(len(g.nets))
	g.nodes = append(g.nodes, Node{
		Kind:   KindOp,
		Name:   name,
		Args:   args,
		Result: netID,
	})
	g.nets = append(g.nets, Net{Dtype: result, Source: nodeID})
	return netID, nil
}

// Store marks net as a requested output and returns the store node.
func (g *Graph) Store(net NetID) (NodeID, error) {
	if !g.validNet(net) {
		return -1, fmt.Errorf("store: unknown net %d", net)
	}
	nodeID := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{
		Kind:   KindStore,
		Name:   "store_" + g.nets[net].Dtype.String(),
		Args:   []NetID{net},
		Result: NoNet,
	})
	return nodeID, nil
}

// Clone returns an independent graph holding the same nodes and nets.
// Handles from g stay valid in the clone; nodes added to either are not
// seen by the other.
func (g *Graph) Clone() *Graph {
	return &Graph{
		catalog: g.catalog,
		nodes:   slices.Clone(g.nodes),
		nets:    slices.Clone(g.nets),
	}
}

// Node returns a copy of the node with the given handle.
func (g *Graph) Node(id NodeID) Node {
	n := g.nodes[id]
	n.Args = slices.Clone(n.Args)
	return n
}

// Net returns the net with the given handle.
func (g *Graph) Net(id NetID) Net {
	return g.nets[id]
}

// Args returns the input nets of a node without copying.
// Callers must not modify the returned slice.
func (g *Graph) Args(id NodeID) []NetID {
	return g.nodes[id].Args
}

// Result returns the net produced by a node, or NoNet.
func (g *Graph) Result(id NodeID) NetID {
	return g.nodes[id].Result
}

// Kind returns the kind of a node.
func (g *Graph) Kind(id NodeID) Kind {
	return g.nodes[id].Kind
}

// NumNodes returns the number of nodes in the arena.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumNets returns the number of nets in the arena.
func (g *Graph) NumNets() int { return len(g.nets) }

// Catalog returns the catalog the graph validates against.
func (g *Graph) Catalog() Catalog { return g.catalog }

func (g *Graph) validNet(id NetID) bool {
	return id >= 0 && int(id) < len(g.nets)
}

// Producer returns the node that produces net.
func (g *Graph) Producer(net NetID) NodeID {
	return g.nets[net].Source
}
