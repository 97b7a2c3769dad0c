package interp

import (
	"fmt"

	"github.com/roach88/stitch/internal/graph"
)

// Eval computes the given nets directly from the graph, without
// scheduling. It is the ground truth compiled programs are checked
// against.
func Eval(g *graph.Graph, nets ...graph.NetID) ([]graph.Literal, error) {
	memo := make(map[graph.NetID]Value)

	var eval func(net graph.NetID) (Value, error)
	eval = func(net graph.NetID) (Value, error) {
		if v, ok := memo[net]; ok {
			return v, nil
		}
		node := g.Node(g.Producer(net))
		var v Value
		switch node.Kind {
		case graph.KindConstant:
			v = FromLiteral(node.Value)
		case graph.KindOp:
			def, ok := catalogue[node.Name]
			if !ok || def.kind != kindArith {
				return Value{}, fmt.Errorf("eval: no semantics for %s", node.Name)
			}
			var args [2]Value
			for i, a := range node.Args {
				if i >= len(args) {
					return Value{}, fmt.Errorf("eval: %s takes %d operands", node.Name, len(node.Args))
				}
				av, err := eval(a)
				if err != nil {
					return Value{}, err
				}
				args[i] = av
			}
			res, err := def.apply(args[0], args[1], nativeAux)
			if err != nil {
				return Value{}, fmt.Errorf("eval: %s: %w", node.Name, err)
			}
			v = res
		default:
			return Value{}, fmt.Errorf("eval: net %d has no value", net)
		}
		memo[net] = v
		return v, nil
	}

	out := make([]graph.Literal, len(nets))
	for i, net := range nets {
		v, err := eval(net)
		if err != nil {
			return nil, err
		}
		out[i] = v.ToLiteral(g.Net(net).Dtype)
	}
	return out, nil
}
