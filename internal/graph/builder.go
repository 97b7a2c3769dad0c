package graph

import "fmt"

// Builder shorthands. Each accepts NetIDs or Go literals and forwards to Op.

func (g *Graph) Add(a, b any) (NetID, error)      { return g.Op("add", a, b) }
func (g *Graph) Sub(a, b any) (NetID, error)      { return g.Op("sub", a, b) }
func (g *Graph) Mul(a, b any) (NetID, error)      { return g.Op("mul", a, b) }
func (g *Graph) Div(a, b any) (NetID, error)      { return g.Op("div", a, b) }
func (g *Graph) FloorDiv(a, b any) (NetID, error) { return g.Op("floordiv", a, b) }
func (g *Graph) Mod(a, b any) (NetID, error)      { return g.Op("mod", a, b) }
func (g *Graph) Pow(a, b any) (NetID, error)      { return g.Op("pow", a, b) }
func (g *Graph) Atan2(a, b any) (NetID, error)    { return g.Op("atan2", a, b) }
func (g *Graph) Gt(a, b any) (NetID, error)       { return g.Op("gt", a, b) }
func (g *Graph) Ge(a, b any) (NetID, error)       { return g.Op("ge", a, b) }
func (g *Graph) Eq(a, b any) (NetID, error)       { return g.Op("eq", a, b) }
func (g *Graph) Ne(a, b any) (NetID, error)       { return g.Op("ne", a, b) }
func (g *Graph) BitAnd(a, b any) (NetID, error)   { return g.Op("bwand", a, b) }
func (g *Graph) BitOr(a, b any) (NetID, error)    { return g.Op("bwor", a, b) }
func (g *Graph) BitXor(a, b any) (NetID, error)   { return g.Op("bwxor", a, b) }
func (g *Graph) Shl(a, b any) (NetID, error)      { return g.Op("lshift", a, b) }
func (g *Graph) Shr(a, b any) (NetID, error)      { return g.Op("rshift", a, b) }

// Lt is Gt with swapped operands; there is no lt stencil.
func (g *Graph) Lt(a, b any) (NetID, error) { return g.Op("gt", b, a) }

// Le is Ge with swapped operands.
func (g *Graph) Le(a, b any) (NetID, error) { return g.Op("ge", b, a) }

// Neg computes 0 - x.
func (g *Graph) Neg(x any) (NetID, error) { return g.Op("sub", 0, x) }

// Unary applies a single-operand function such as sqrt or sin.
// Unary stencils take the operand in both slots, so the net is passed twice.
func (g *Graph) Unary(fn string, x any) (NetID, error) {
	if id, ok := x.(NetID); ok {
		return g.Op(fn, id, id)
	}
	lit, err := LiteralOf(x)
	if err != nil {
		return NoNet, err
	}
	net := g.addConstant(lit)
	return g.Op(fn, net, net)
}

func (g *Graph) Sqrt(x any) (NetID, error) { return g.Unary("sqrt", x) }
func (g *Graph) Exp(x any) (NetID, error)  { return g.Unary("exp", x) }
func (g *Graph) Log(x any) (NetID, error)  { return g.Unary("log", x) }
func (g *Graph) Sin(x any) (NetID, error)  { return g.Unary("sin", x) }
func (g *Graph) Cos(x any) (NetID, error)  { return g.Unary("cos", x) }
func (g *Graph) Tan(x any) (NetID, error)  { return g.Unary("tan", x) }
func (g *Graph) Asin(x any) (NetID, error) { return g.Unary("asin", x) }
func (g *Graph) Atan(x any) (NetID, error) { return g.Unary("atan", x) }

// Convert casts x to the given dtype. Converting to the dtype x already
// has (bool counts as int) returns x unchanged.
func (g *Graph) Convert(x NetID, to Dtype) (NetID, error) {
	if !g.validNet(x) {
		return NoNet, fmt.Errorf("convert: unknown net %d", x)
	}
	if g.nets[x].Dtype.StencilName() == to.StencilName() {
		return x, nil
	}
	return g.Op("cast_"+to.StencilName(), x, x)
}

// Sum adds the given nets left to right. An empty sum is the int constant 0.
func (g *Graph) Sum(nets ...NetID) (NetID, error) {
	if len(nets) == 0 {
		return g.Constant(0)
	}
	acc := nets[0]
	for _, n := range nets[1:] {
		var err error
		acc, err = g.Add(acc, n)
		if err != nil {
			return NoNet, err
		}
	}
	return acc, nil
}
