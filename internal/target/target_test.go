package target

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stitch/internal/graph"
	"github.com/roach88/stitch/internal/interp"
	"github.com/roach88/stitch/internal/runner"
	"github.com/roach88/stitch/internal/stencil"
)

func newVirtualTarget(t *testing.T, order binary.ByteOrder) *Target {
	t.Helper()
	data, err := interp.StencilObject(order)
	require.NoError(t, err)
	db, err := stencil.Parse(data)
	require.NoError(t, err)
	mem := runner.NewHeapMemory(order, interp.NewMachine(order), interp.DataBase)
	tg, err := New(db, mem)
	require.NoError(t, err)
	return tg
}

func compileAndRun(t *testing.T, tg *Target, g *graph.Graph, outputs ...graph.NetID) []graph.Literal {
	t.Helper()
	_, err := tg.Compile(g, outputs...)
	require.NoError(t, err)
	require.NoError(t, tg.Run())
	out := make([]graph.Literal, len(outputs))
	for i, net := range outputs {
		out[i], err = tg.ReadValue(net)
		require.NoError(t, err)
	}
	return out
}

func TestExampleProgram(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			tg := newVirtualTarget(t, order)
			g := graph.New(tg.Database())
			c, err := g.Constant(1.11)
			require.NoError(t, err)
			m, err := g.Mul(c, 2)
			require.NoError(t, err)
			r, err := g.Add(m, 7)
			require.NoError(t, err)

			out := compileAndRun(t, tg, g, r)

			assert.Equal(t, graph.Float, out[0].Dtype)
			assert.InDelta(t, 9.22, out[0].F, 1e-5)
		})
	}
}

func TestDivisionSemantics(t *testing.T) {
	tests := []struct {
		name string
		op   func(g *graph.Graph) (graph.NetID, error)
		want graph.Literal
	}{
		{"16/4", func(g *graph.Graph) (graph.NetID, error) { return g.Div(16, 4) }, graph.Literal{Dtype: graph.Float, F: 4}},
		{"16//4", func(g *graph.Graph) (graph.NetID, error) { return g.FloorDiv(16, 4) }, graph.Literal{Dtype: graph.Int, I: 4}},
		{"-16//4", func(g *graph.Graph) (graph.NetID, error) { return g.FloorDiv(-16, 4) }, graph.Literal{Dtype: graph.Int, I: -4}},
		{"-7.0//2", func(g *graph.Graph) (graph.NetID, error) { return g.FloorDiv(-7.0, 2) }, graph.Literal{Dtype: graph.Float, F: -4}},
		{"7.5//2", func(g *graph.Graph) (graph.NetID, error) { return g.FloorDiv(7.5, 2) }, graph.Literal{Dtype: graph.Float, F: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := newVirtualTarget(t, binary.LittleEndian)
			g := graph.New(tg.Database())
			net, err := tt.op(g)
			require.NoError(t, err)

			out := compileAndRun(t, tg, g, net)

			assert.Equal(t, tt.want, out[0])
		})
	}
}

func TestVectorSum(t *testing.T) {
	tg := newVirtualTarget(t, binary.LittleEndian)
	g := graph.New(tg.Database())
	var sums []graph.NetID
	for i, a := range []int{10, 11, 12} {
		s, err := g.Add(a, i)
		require.NoError(t, err)
		sums = append(sums, s)
	}
	total, err := g.Sum(sums...)
	require.NoError(t, err)

	out := compileAndRun(t, tg, g, total)

	assert.Equal(t, graph.Literal{Dtype: graph.Int, I: 36}, out[0])
}

func TestCommutativeOperandsShareStencil(t *testing.T) {
	tg := newVirtualTarget(t, binary.LittleEndian)
	g := graph.New(tg.Database())
	a, err := g.Add(2, 0.5)
	require.NoError(t, err)
	b, err := g.Add(0.5, 2)
	require.NoError(t, err)

	assert.Equal(t, "add_float_int", g.Node(g.Producer(a)).Name)
	assert.Equal(t, "add_float_int", g.Node(g.Producer(b)).Name)

	out := compileAndRun(t, tg, g, a, b)
	assert.Equal(t, out[0], out[1])
	assert.InDelta(t, 2.5, out[0].F, 1e-6)
}

func TestSpilledValueIsReloaded(t *testing.T) {
	tg := newVirtualTarget(t, binary.LittleEndian)
	g := graph.New(tg.Database())
	a, err := g.Add(1, 2)
	require.NoError(t, err)
	b, err := g.Add(3, 4)
	require.NoError(t, err)
	c, err := g.Mul(a, b)
	require.NoError(t, err)

	out := compileAndRun(t, tg, g, c)

	assert.Equal(t, graph.Literal{Dtype: graph.Int, I: 21}, out[0])
	assert.Positive(t, tg.Result().Plan.Stats().Spills)
}

func TestAuxiliaryFunctionCall(t *testing.T) {
	tg := newVirtualTarget(t, binary.LittleEndian)
	g := graph.New(tg.Database())
	x, err := g.Unary("get_42", 3)
	require.NoError(t, err)

	out := compileAndRun(t, tg, g, x)

	assert.Equal(t, graph.Literal{Dtype: graph.Float, F: 45}, out[0])
}

func TestComparisonReadsBackBool(t *testing.T) {
	tg := newVirtualTarget(t, binary.LittleEndian)
	g := graph.New(tg.Database())
	lt, err := g.Lt(1, 2.5)
	require.NoError(t, err)
	ge, err := g.Ge(1, 2.5)
	require.NoError(t, err)

	out := compileAndRun(t, tg, g, lt, ge)

	assert.Equal(t, true, out[0].Value())
	assert.Equal(t, false, out[1].Value())
}

func TestWriteValueThenRun(t *testing.T) {
	tg := newVirtualTarget(t, binary.LittleEndian)
	g := graph.New(tg.Database())
	x, err := g.Constant(3.0)
	require.NoError(t, err)
	y, err := g.Mul(x, 2)
	require.NoError(t, err)

	out := compileAndRun(t, tg, g, y)
	assert.Equal(t, graph.Literal{Dtype: graph.Float, F: 6}, out[0])

	require.NoError(t, tg.WriteValue(x, 5))
	require.NoError(t, tg.Run())
	got, err := tg.ReadValue(y)
	require.NoError(t, err)
	assert.Equal(t, graph.Literal{Dtype: graph.Float, F: 10}, got)

	err = tg.WriteValue(x, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot store bool into float")
}

func TestValueNotCompiled(t *testing.T) {
	tg := newVirtualTarget(t, binary.LittleEndian)
	g := graph.New(tg.Database())
	c, err := g.Constant(1.11)
	require.NoError(t, err)
	m, err := g.Mul(c, 2)
	require.NoError(t, err)
	r, err := g.Add(m, 7)
	require.NoError(t, err)

	_, err = tg.ReadValue(r)
	assert.True(t, IsValueNotCompiled(err), "nothing compiled yet")

	compileAndRun(t, tg, g, r)

	_, err = tg.ReadValue(m)
	require.Error(t, err)
	assert.True(t, IsValueNotCompiled(err), "intermediate stays in a register")
	assert.True(t, IsValueNotCompiled(tg.WriteValue(m, 1.0)))
}

func TestRunBeforeCompile(t *testing.T) {
	tg := newVirtualTarget(t, binary.LittleEndian)

	assert.ErrorIs(t, tg.Run(), ErrNotCompiled)
}

func TestRecompileReplacesProgram(t *testing.T) {
	tg := newVirtualTarget(t, binary.LittleEndian)

	g1 := graph.New(tg.Database())
	a, err := g1.Add(1, 1)
	require.NoError(t, err)
	compileAndRun(t, tg, g1, a)

	g2 := graph.New(tg.Database())
	b, err := g2.Sub(10.0, 4)
	require.NoError(t, err)
	out := compileAndRun(t, tg, g2, b)

	assert.Equal(t, graph.Literal{Dtype: graph.Float, F: 6}, out[0])
	assert.Len(t, tg.Variables(), len(tg.Result().Plan.HeapNets))
}

func TestCompileLeavesGraphUnchanged(t *testing.T) {
	tg := newVirtualTarget(t, binary.LittleEndian)

	g := graph.New(tg.Database())
	r, err := g.Add(2, 3)
	require.NoError(t, err)
	nodes := g.NumNodes()

	for i := 0; i < 3; i++ {
		out := compileAndRun(t, tg, g, r)
		assert.Equal(t, graph.Literal{Dtype: graph.Int, I: 5}, out[0])
		assert.Equal(t, nodes, g.NumNodes())
	}
}

func TestLoadReplaysStream(t *testing.T) {
	src := newVirtualTarget(t, binary.LittleEndian)
	g := graph.New(src.Database())
	r, err := g.Mul(6, 7)
	require.NoError(t, err)
	res, err := src.Compile(g, r)
	require.NoError(t, err)

	tg := newVirtualTarget(t, binary.LittleEndian)
	require.NoError(t, tg.Load(res.Stream, res.Variables))
	require.NoError(t, tg.Run())

	v, err := tg.ReadValue(r)
	require.NoError(t, err)
	assert.Equal(t, graph.Literal{Dtype: graph.Int, I: 42}, v)
	assert.Nil(t, tg.Result().Plan)
}

func TestLoadRejectsCorruptStream(t *testing.T) {
	tg := newVirtualTarget(t, binary.LittleEndian)
	err := tg.Load([]byte{0xFF, 0, 0, 0}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, tg.Run(), ErrNotCompiled)
}

func TestNewRejectsByteOrderMismatch(t *testing.T) {
	data, err := interp.StencilObject(binary.LittleEndian)
	require.NoError(t, err)
	db, err := stencil.Parse(data)
	require.NoError(t, err)

	_, err = New(db, runner.NewHeapMemory(binary.BigEndian, nil, 0))

	require.Error(t, err)
}

func TestWithID(t *testing.T) {
	data, err := interp.StencilObject(binary.LittleEndian)
	require.NoError(t, err)
	db, err := stencil.Parse(data)
	require.NoError(t, err)
	id := uuid.MustParse("6f1c1a52-2f43-4c1e-9d4e-5b0a3c7e9a10")

	tg, err := New(db, runner.NewHeapMemory(binary.LittleEndian, nil, 0), WithID(id))
	require.NoError(t, err)

	assert.Equal(t, id, tg.ID())
	assert.NotEqual(t, uuid.Nil, newVirtualTarget(t, binary.LittleEndian).ID())
}

// randomGraph builds a graph of mixed int and float arithmetic whose
// operands are drawn from earlier nets, so spills and reloads happen.
func randomGraph(rng *rand.Rand, catalog graph.Catalog) (*graph.Graph, []graph.NetID, error) {
	g := graph.New(catalog)
	var nets []graph.NetID
	for i := 0; i < 3; i++ {
		var v any = rng.Intn(20) - 10
		if rng.Intn(2) == 0 {
			v = float64(rng.Intn(40)-20) / 4
		}
		n, err := g.Constant(v)
		if err != nil {
			return nil, nil, err
		}
		nets = append(nets, n)
	}
	opNames := []string{"add", "sub", "mul", "gt", "eq"}
	for i := 0; i < 4+rng.Intn(12); i++ {
		a := nets[rng.Intn(len(nets))]
		var b any = nets[rng.Intn(len(nets))]
		if rng.Intn(4) == 0 {
			b = rng.Intn(5)
		}
		n, err := g.Op(opNames[rng.Intn(len(opNames))], a, b)
		if err != nil {
			return nil, nil, err
		}
		nets = append(nets, n)
	}
	outs := []graph.NetID{nets[len(nets)-1]}
	if len(nets) > 5 {
		outs = append(outs, nets[len(nets)/2])
	}
	return g, outs, nil
}

func TestCompiledMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tg := newVirtualTarget(t, binary.LittleEndian)

	for i := 0; i < 50; i++ {
		g, outs, err := randomGraph(rng, tg.Database())
		require.NoError(t, err)

		want, err := interp.Eval(g, outs...)
		require.NoError(t, err)
		got := compileAndRun(t, tg, g, outs...)

		require.Len(t, got, len(want))
		for j := range want {
			if want[j].Dtype == graph.Float && math.IsNaN(want[j].F) {
				assert.True(t, math.IsNaN(got[j].F), "graph %d output %d", i, j)
				continue
			}
			assert.Equal(t, want[j], got[j], "graph %d output %d", i, j)
		}
	}
}
