package interp

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/stitch/internal/graph"
)

// opKind separates how the machine drives a stencil.
type opKind uint8

const (
	kindArith opKind = iota + 1
	kindLoad
	kindStore
)

// auxCaller runs an auxiliary function on float arguments.
type auxCaller func(name string, args ...float32) (Value, error)

// opDef describes one stencil of the catalogue.
type opDef struct {
	name string
	kind opKind

	// result is the continuation suffix, e.g. "float_int".
	result string

	// target and slot describe a load.
	target graph.Dtype
	slot   int

	// aux is the auxiliary function the stencil calls, if any.
	aux string

	apply func(a, b Value, call auxCaller) (Value, error)
}

// resultDtype is the dtype the stencil leaves in slot 0.
func (d *opDef) resultDtype() graph.Dtype {
	first, _, _ := strings.Cut(d.result, "_")
	dt, _ := graph.ParseDtype(first)
	return dt
}

// ErrDivisionByZero is returned for integer division or modulo by zero.
var ErrDivisionByZero = errors.New("integer division by zero")

var stencilTypes = []graph.Dtype{graph.Int, graph.Float}

func tname(d graph.Dtype) string { return d.StencilName() }

// floorDiv is the float floor division helper stencils call.
func floorDiv(a, b float32) int32 {
	x := a / b
	i := int32(x)
	if x < 0 && x != float32(i) {
		i--
	}
	return i
}

// get42 is the demonstration auxiliary function.
func get42(a float32) float32 {
	return a + 42
}

// nativeAux evaluates auxiliary functions directly.
func nativeAux(name string, args ...float32) (Value, error) {
	switch name {
	case "aux_get_42":
		return Float(get42(args[0])), nil
	case "floor_div":
		return Int(floorDiv(args[0], args[1])), nil
	}
	return Value{}, fmt.Errorf("unknown auxiliary function %s", name)
}

func math1(fn func(float64) float64) func(a, b Value, _ auxCaller) (Value, error) {
	return func(a, _ Value, _ auxCaller) (Value, error) {
		return Float(float32(fn(float64(a.AsFloat())))), nil
	}
}

func math2(fn func(float64, float64) float64) func(a, b Value, _ auxCaller) (Value, error) {
	return func(a, b Value, _ auxCaller) (Value, error) {
		return Float(float32(fn(float64(a.AsFloat()), float64(b.AsFloat())))), nil
	}
}

func arith(op string, t1, t2 graph.Dtype) func(a, b Value, _ auxCaller) (Value, error) {
	ints := t1 == graph.Int && t2 == graph.Int
	return func(a, b Value, _ auxCaller) (Value, error) {
		if ints {
			x, y := a.I, b.I
			switch op {
			case "add":
				return Int(x + y), nil
			case "sub":
				return Int(x - y), nil
			case "mul":
				return Int(x * y), nil
			}
		}
		x, y := a.AsFloat(), b.AsFloat()
		switch op {
		case "add":
			return Float(x + y), nil
		case "sub":
			return Float(x - y), nil
		case "mul":
			return Float(x * y), nil
		}
		return Value{}, fmt.Errorf("unknown arithmetic op %s", op)
	}
}

func boolInt(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

func compare(op string, t1, t2 graph.Dtype) func(a, b Value, _ auxCaller) (Value, error) {
	ints := t1 == graph.Int && t2 == graph.Int
	return func(a, b Value, _ auxCaller) (Value, error) {
		if ints {
			x, y := a.I, b.I
			switch op {
			case "gt":
				return boolInt(x > y), nil
			case "ge":
				return boolInt(x >= y), nil
			case "eq":
				return boolInt(x == y), nil
			default:
				return boolInt(x != y), nil
			}
		}
		x, y := a.AsFloat(), b.AsFloat()
		switch op {
		case "gt":
			return boolInt(x > y), nil
		case "ge":
			return boolInt(x >= y), nil
		case "eq":
			return boolInt(x == y), nil
		default:
			return boolInt(x != y), nil
		}
	}
}

func intOp(op string) func(a, b Value, _ auxCaller) (Value, error) {
	return func(a, b Value, _ auxCaller) (Value, error) {
		x, y := a.I, b.I
		switch op {
		case "bwand":
			return Int(x & y), nil
		case "bwor":
			return Int(x | y), nil
		case "bwxor":
			return Int(x ^ y), nil
		case "lshift":
			return Int(x << uint32(y&31)), nil
		case "rshift":
			return Int(x >> uint32(y&31)), nil
		case "mod":
			if y == 0 {
				return Value{}, ErrDivisionByZero
			}
			return Int(x % y), nil
		}
		return Value{}, fmt.Errorf("unknown int op %s", op)
	}
}

var catalogue = buildCatalogue()

func buildCatalogue() map[string]*opDef {
	defs := make(map[string]*opDef)
	add := func(d *opDef) {
		if d.kind == 0 {
			d.kind = kindArith
		}
		defs[d.name] = d
	}

	for _, t1 := range stencilTypes {
		for _, t2 := range stencilTypes {
			tout := graph.Float
			if t1 == graph.Float {
				tout = graph.Int
			}
			add(&opDef{
				name:   fmt.Sprintf("cast_%s_%s_%s", tname(tout), tname(t1), tname(t2)),
				result: tname(tout) + "_" + tname(t2),
				apply: func(a, _ Value, _ auxCaller) (Value, error) {
					if tout == graph.Int {
						return Int(a.AsInt()), nil
					}
					return Float(a.AsFloat()), nil
				},
			})
		}
	}

	for _, t := range stencilTypes {
		add(&opDef{
			name:   fmt.Sprintf("get_42_%s_%s", tname(t), tname(t)),
			result: "float_" + tname(t),
			aux:    "aux_get_42",
			apply: func(a, _ Value, call auxCaller) (Value, error) {
				return call("aux_get_42", a.AsFloat())
			},
		})
	}

	unary := map[string]func(float64) float64{
		"sqrt": math.Sqrt, "exp": math.Exp, "log": math.Log, "sin": math.Sin,
		"cos": math.Cos, "tan": math.Tan, "asin": math.Asin, "atan": math.Atan,
	}
	for fn, impl := range unary {
		for _, t := range stencilTypes {
			add(&opDef{
				name:   fmt.Sprintf("%s_%s_%s", fn, tname(t), tname(t)),
				result: "float_" + tname(t),
				apply:  math1(impl),
			})
		}
	}

	binary := map[string]func(float64, float64) float64{"atan2": math.Atan2, "pow": math.Pow}
	for fn, impl := range binary {
		for _, t1 := range stencilTypes {
			for _, t2 := range stencilTypes {
				add(&opDef{
					name:   fmt.Sprintf("%s_%s_%s", fn, tname(t1), tname(t2)),
					result: "float_" + tname(t2),
					apply:  math2(impl),
				})
			}
		}
	}

	for _, op := range []string{"add", "sub", "mul", "div", "floordiv", "gt", "ge", "eq", "ne"} {
		for _, t1 := range stencilTypes {
			for _, t2 := range stencilTypes {
				d := &opDef{name: fmt.Sprintf("%s_%s_%s", op, tname(t1), tname(t2))}
				tout := graph.Float
				if t1 == t2 {
					tout = t1
				}
				switch op {
				case "div":
					tout = graph.Float
					d.apply = func(a, b Value, _ auxCaller) (Value, error) {
						return Float(a.AsFloat() / b.AsFloat()), nil
					}
				case "floordiv":
					if t1 == graph.Int && t2 == graph.Int {
						tout = graph.Int
						d.apply = func(a, b Value, _ auxCaller) (Value, error) {
							if b.I == 0 {
								return Value{}, ErrDivisionByZero
							}
							q := a.I / b.I
							if a.I%b.I != 0 && (a.I < 0) != (b.I < 0) {
								q--
							}
							return Int(q), nil
						}
					} else {
						tout = graph.Float
						d.aux = "floor_div"
						d.apply = func(a, b Value, call auxCaller) (Value, error) {
							q, err := call("floor_div", a.AsFloat(), b.AsFloat())
							if err != nil {
								return Value{}, err
							}
							return Float(float32(q.AsInt())), nil
						}
					}
				case "gt", "ge", "eq", "ne":
					tout = graph.Int
					d.apply = compare(op, t1, t2)
				default:
					d.apply = arith(op, t1, t2)
				}
				d.result = tname(tout) + "_" + tname(t2)
				add(d)
			}
		}
	}

	for _, op := range []string{"bwand", "bwor", "bwxor", "lshift", "rshift", "mod"} {
		add(&opDef{name: op + "_int_int", result: "int_int", apply: intOp(op)})
	}

	for _, t1 := range stencilTypes {
		for _, t2 := range stencilTypes {
			for _, tout := range stencilTypes {
				suffix := tname(t1) + "_" + tname(t2)
				add(&opDef{
					name:   fmt.Sprintf("read_%s_reg0_%s", tname(tout), suffix),
					kind:   kindLoad,
					result: tname(tout) + "_" + tname(t2),
					target: tout,
					slot:   0,
				})
				add(&opDef{
					name:   fmt.Sprintf("read_%s_reg1_%s", tname(tout), suffix),
					kind:   kindLoad,
					result: tname(t1) + "_" + tname(tout),
					target: tout,
					slot:   1,
				})
			}
			add(&opDef{
				name:   fmt.Sprintf("write_%s_reg0_%s_%s", tname(t1), tname(t1), tname(t2)),
				kind:   kindStore,
				result: tname(t1) + "_" + tname(t2),
				target: t1,
			})
		}
	}

	return defs
}

// Catalog answers result dtype queries for the standard stencil set.
// It implements graph.Catalog.
type Catalog struct{}

// ResultDtype returns the dtype a stencil leaves in slot 0.
func (Catalog) ResultDtype(name string) (graph.Dtype, bool) {
	d, ok := catalogue[name]
	if !ok {
		return graph.Invalid, false
	}
	return d.resultDtype(), true
}

// Names returns every stencil name in the catalogue, sorted.
func (Catalog) Names() []string {
	names := make([]string, 0, len(catalogue))
	for name := range catalogue {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
