package program

import (
	"fmt"

	"github.com/roach88/stitch/internal/graph"
)

// Program is a built graph with its named values.
type Program struct {
	Name    string
	Graph   *graph.Graph
	Nets    map[string]graph.NetID
	Outputs []graph.NetID

	// OutputNames holds the output names in Outputs order. Literal outputs
	// are named after their value.
	OutputNames []string
}

var unaryOps = map[string]bool{
	"sqrt": true, "exp": true, "log": true, "sin": true, "cos": true,
	"tan": true, "asin": true, "atan": true, "get_42": true,
}

// Build adds every value of spec to a new graph validated against catalog.
func Build(spec *Spec, catalog graph.Catalog) (*Program, error) {
	p := &Program{
		Name:  spec.Name,
		Graph: graph.New(catalog),
		Nets:  make(map[string]graph.NetID),
	}

	for _, v := range spec.Values {
		if _, dup := p.Nets[v.Name]; dup {
			return nil, &CompileError{Field: v.Name, Message: "duplicate value name", Pos: v.Pos}
		}
		net, err := p.value(v)
		if err != nil {
			return nil, err
		}
		p.Nets[v.Name] = net
	}

	if len(spec.Outputs) == 0 {
		return nil, &CompileError{Field: "outputs", Message: "at least one output is required"}
	}
	for _, out := range spec.Outputs {
		net, err := p.operand(out)
		if err != nil {
			return nil, err
		}
		id, ok := net.(graph.NetID)
		if !ok {
			if id, err = p.Graph.Constant(net); err != nil {
				return nil, &CompileError{Field: "outputs", Message: err.Error(), Pos: out.Pos}
			}
		}
		name := out.Ref
		if name == "" {
			name = fmt.Sprint(out.Literal)
		}
		p.Outputs = append(p.Outputs, id)
		p.OutputNames = append(p.OutputNames, name)
	}
	return p, nil
}

// operand resolves an argument to a NetID or a Go literal.
func (p *Program) operand(a Arg) (any, error) {
	if a.Ref == "" {
		return a.Literal, nil
	}
	net, ok := p.Nets[a.Ref]
	if !ok {
		return nil, &CompileError{Field: a.Ref, Message: "reference to undefined value", Pos: a.Pos}
	}
	return net, nil
}

func (p *Program) value(v Value) (graph.NetID, error) {
	fail := func(msg string) (graph.NetID, error) {
		return graph.NoNet, &CompileError{Field: v.Name, Message: msg, Pos: v.Pos}
	}

	if v.Const != nil {
		if v.Op != "" || len(v.Args) > 0 {
			return fail("a constant cannot have op or args")
		}
		net, err := p.Graph.Constant(v.Const)
		if err != nil {
			return fail(err.Error())
		}
		return net, nil
	}
	if v.Op == "" {
		return fail("value needs either const or op")
	}

	args := make([]any, len(v.Args))
	for i, a := range v.Args {
		x, err := p.operand(a)
		if err != nil {
			return graph.NoNet, err
		}
		args[i] = x
	}

	arity := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d arguments, got %d", v.Op, n, len(args))
		}
		return nil
	}

	var (
		net graph.NetID
		err error
	)
	switch {
	case v.Op == "sum":
		nets := make([]graph.NetID, len(args))
		for i, a := range args {
			n, ok := a.(graph.NetID)
			if !ok {
				if n, err = p.Graph.Constant(a); err != nil {
					return fail(err.Error())
				}
			}
			nets[i] = n
		}
		net, err = p.Graph.Sum(nets...)
	case v.Op == "convert":
		if err = arity(1); err != nil {
			break
		}
		var to graph.Dtype
		if to, err = graph.ParseDtype(v.To); err != nil {
			break
		}
		src, ok := args[0].(graph.NetID)
		if !ok {
			if src, err = p.Graph.Constant(args[0]); err != nil {
				break
			}
		}
		net, err = p.Graph.Convert(src, to)
	case v.Op == "neg":
		if err = arity(1); err == nil {
			net, err = p.Graph.Neg(args[0])
		}
	case unaryOps[v.Op]:
		if err = arity(1); err == nil {
			net, err = p.Graph.Unary(v.Op, args[0])
		}
	case v.Op == "lt":
		if err = arity(2); err == nil {
			net, err = p.Graph.Lt(args[0], args[1])
		}
	case v.Op == "le":
		if err = arity(2); err == nil {
			net, err = p.Graph.Le(args[0], args[1])
		}
	default:
		if err = arity(2); err == nil {
			net, err = p.Graph.Op(v.Op, args[0], args[1])
		}
	}
	if err != nil {
		return fail(err.Error())
	}
	return net, nil
}

// Roots stores every output on a copy of the program graph and returns
// that copy with its store nodes. p.Graph is left unchanged.
func (p *Program) Roots() (*graph.Graph, []graph.NodeID, error) {
	g := p.Graph.Clone()
	roots := make([]graph.NodeID, len(p.Outputs))
	for i, net := range p.Outputs {
		root, err := g.Store(net)
		if err != nil {
			return nil, nil, err
		}
		roots[i] = root
	}
	return g, roots, nil
}
