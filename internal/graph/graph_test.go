package graph

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCatalog resolves typed names from a fixed table.
type mapCatalog map[string]Dtype

func (c mapCatalog) ResultDtype(name string) (Dtype, bool) {
	d, ok := c[name]
	return d, ok
}

func testCatalog() mapCatalog {
	c := mapCatalog{}
	for _, name := range []string{"add_int_int", "sub_int_int", "gt_int_int", "eq_float_int"} {
		c[name] = Int
	}
	for _, name := range []string{
		"add_float_int", "add_float_float", "add_int_float", "sub_int_float",
		"mul_int_float", "mul_float_int", "sqrt_float_float", "cast_float_int_int",
	} {
		c[name] = Float
	}
	c["cast_int_float_float"] = Int
	return c
}

func TestConstantsAreNeverDeduplicated(t *testing.T) {
	g := New(testCatalog())

	a, err := g.Constant(5)
	require.NoError(t, err)
	b, err := g.Constant(5)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "equal literals must get distinct nets")
	assert.NotEqual(t, g.Producer(a), g.Producer(b))
	assert.Equal(t, 2, g.NumNodes())
	assert.Equal(t, "const_int", g.Node(g.Producer(a)).Name)
}

func TestOpResolvesTypedName(t *testing.T) {
	g := New(testCatalog())

	x, err := g.Constant(1.5)
	require.NoError(t, err)
	sum, err := g.Add(x, x)
	require.NoError(t, err)

	node := g.Node(g.Producer(sum))
	assert.Equal(t, KindOp, node.Kind)
	assert.Equal(t, "add_float_float", node.Name)
	assert.Equal(t, []NetID{x, x}, node.Args)
	assert.Equal(t, Float, g.Net(sum).Dtype)
}

func TestCommutativeCanonicalization(t *testing.T) {
	g := New(testCatalog())

	ab, err := g.Add(2, 3.0)
	require.NoError(t, err)
	ba, err := g.Add(3.0, 2)
	require.NoError(t, err)

	assert.Equal(t, "add_float_int", g.Node(g.Producer(ab)).Name)
	assert.Equal(t, "add_float_int", g.Node(g.Producer(ba)).Name)
	assert.Equal(t, g.Net(ab).Dtype, g.Net(ba).Dtype)

	// The float operand is moved first.
	args := g.Args(g.Producer(ab))
	assert.Equal(t, Float, g.Net(args[0]).Dtype)
	assert.Equal(t, Int, g.Net(args[1]).Dtype)
}

func TestNonCommutativeKeepsOrder(t *testing.T) {
	g := New(testCatalog())

	d, err := g.Sub(1, 2.0)
	require.NoError(t, err)
	assert.Equal(t, "sub_int_float", g.Node(g.Producer(d)).Name)

	_, err = g.Sub(2.0, 1)
	require.Error(t, err)
	assert.True(t, IsUnsupportedOperation(err))
	assert.Equal(t, "operation sub not implemented for float and int", err.Error())
}

func TestComparisonsProduceBool(t *testing.T) {
	g := New(testCatalog())

	gt, err := g.Gt(1, 2)
	require.NoError(t, err)
	assert.Equal(t, Bool, g.Net(gt).Dtype)

	lt, err := g.Lt(1, 2)
	require.NoError(t, err)
	node := g.Node(g.Producer(lt))
	assert.Equal(t, "gt_int_int", node.Name)
	assert.Equal(t, int64(2), g.Node(g.Producer(node.Args[0])).Value.I, "lt swaps operands")

	eq, err := g.Eq(1, 2.5)
	require.NoError(t, err)
	assert.Equal(t, Bool, g.Net(eq).Dtype)
	assert.Equal(t, "eq_float_int", g.Node(g.Producer(eq)).Name)
}

func TestBoolOperandsUseIntStencils(t *testing.T) {
	g := New(testCatalog())

	b, err := g.Gt(3, 1)
	require.NoError(t, err)
	sum, err := g.Add(b, 1)
	require.NoError(t, err)

	assert.Equal(t, "add_int_int", g.Node(g.Producer(sum)).Name)
}

func TestUnaryPassesOperandTwice(t *testing.T) {
	g := New(testCatalog())

	r, err := g.Sqrt(2.0)
	require.NoError(t, err)

	args := g.Args(g.Producer(r))
	require.Len(t, args, 2)
	assert.Equal(t, args[0], args[1])
	assert.Equal(t, 2, g.NumNets(), "one constant, one result")
}

func TestConvert(t *testing.T) {
	g := New(testCatalog())

	i, err := g.Constant(4)
	require.NoError(t, err)

	same, err := g.Convert(i, Int)
	require.NoError(t, err)
	assert.Equal(t, i, same)

	f, err := g.Convert(i, Float)
	require.NoError(t, err)
	assert.Equal(t, "cast_float_int_int", g.Node(g.Producer(f)).Name)
	assert.Equal(t, Float, g.Net(f).Dtype)
}

func TestStoreNode(t *testing.T) {
	g := New(testCatalog())

	x, err := g.Constant(true)
	require.NoError(t, err)
	s, err := g.Store(x)
	require.NoError(t, err)

	assert.Equal(t, KindStore, g.Kind(s))
	assert.Equal(t, NoNet, g.Result(s))
	assert.Equal(t, "store_bool", g.Node(s).Name)

	_, err = g.Store(NetID(42))
	require.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	g := New(testCatalog())
	x, err := g.Add(1, 2)
	require.NoError(t, err)

	c := g.Clone()
	s, err := c.Store(x)
	require.NoError(t, err)

	assert.Equal(t, 3, g.NumNodes())
	assert.Equal(t, 4, c.NumNodes())
	assert.Equal(t, KindStore, c.Kind(s))
	assert.Equal(t, g.Node(g.Producer(x)), c.Node(c.Producer(x)))
}

func TestOpRejectsForeignNets(t *testing.T) {
	g := New(testCatalog())

	_, err := g.Add(NetID(7), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown net 7")

	_, err = g.Add("x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported literal type string")
}

func TestSumEmptyAndChained(t *testing.T) {
	g := New(testCatalog())

	zero, err := g.Sum()
	require.NoError(t, err)
	assert.Equal(t, KindConstant, g.Kind(g.Producer(zero)))

	a, _ := g.Constant(1)
	b, _ := g.Constant(2)
	c, _ := g.Constant(3)
	s, err := g.Sum(a, b, c)
	require.NoError(t, err)

	outer := g.Node(g.Producer(s))
	assert.Equal(t, "add_int_int", outer.Name)
	assert.Equal(t, c, outer.Args[1])
}

func TestLiteralEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		lit  Literal
		size int
	}{
		{"int32", Literal{Dtype: Int, I: -16}, 4},
		{"int64", Literal{Dtype: Int, I: -1 << 40}, 8},
		{"int8", Literal{Dtype: Int, I: -3}, 1},
		{"float32", Literal{Dtype: Float, F: 0.5}, 4},
		{"float64", Literal{Dtype: Float, F: 1.1}, 8},
		{"bool", Literal{Dtype: Bool, I: 1}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
				data, err := tt.lit.Encode(tt.size, order)
				require.NoError(t, err)
				require.Len(t, data, tt.size)

				got, err := DecodeLiteral(tt.lit.Dtype, data, order)
				require.NoError(t, err)
				assert.Equal(t, tt.lit, got)
			}
		})
	}
}

func TestLiteralEncodeRejectsOddSizes(t *testing.T) {
	_, err := Literal{Dtype: Float, F: 1}.Encode(2, binary.LittleEndian)
	assert.Error(t, err)

	_, err = Literal{Dtype: Int}.Encode(3, binary.LittleEndian)
	assert.Error(t, err)
}

func TestDigestIsStructural(t *testing.T) {
	build := func(extra bool) (*Graph, NodeID) {
		g := New(testCatalog())
		if extra {
			_, _ = g.Constant(99)
		}
		x, _ := g.Constant(1.11)
		y, _ := g.Mul(x, 2)
		z, _ := g.Add(y, 7)
		s, _ := g.Store(z)
		return g, s
	}

	g1, r1 := build(false)
	g2, r2 := build(true)

	d1, err := g1.Digest([]NodeID{r1})
	require.NoError(t, err)
	d2, err := g2.Digest([]NodeID{r2})
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "unreachable nodes must not affect the digest")

	g3 := New(testCatalog())
	x, _ := g3.Constant(1.12)
	y, _ := g3.Mul(x, 2)
	z, _ := g3.Add(y, 7)
	s, _ := g3.Store(z)
	d3, err := g3.Digest([]NodeID{s})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestDtypeText(t *testing.T) {
	for _, d := range []Dtype{Int, Float, Bool} {
		text, err := d.MarshalText()
		require.NoError(t, err)

		var back Dtype
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, d, back)
	}

	_, err := ParseDtype("complex")
	assert.Error(t, err)
	assert.Equal(t, "int", Bool.StencilName())
}
