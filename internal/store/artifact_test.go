package store

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stitch/internal/assemble"
	"github.com/roach88/stitch/internal/graph"
	"github.com/roach88/stitch/internal/interp"
	"github.com/roach88/stitch/internal/stencil"
)

func testArtifact(t *testing.T, order binary.ByteOrder, c float64) *Artifact {
	t.Helper()
	data, err := interp.StencilObject(order)
	require.NoError(t, err)
	db, err := stencil.Parse(data)
	require.NoError(t, err)

	g := graph.New(db)
	m, err := g.Mul(c, 2)
	require.NoError(t, err)
	r, err := g.Add(m, 7)
	require.NoError(t, err)
	root, err := g.Store(r)
	require.NoError(t, err)
	roots := []graph.NodeID{root}

	digest, err := g.Digest(roots)
	require.NoError(t, err)
	res, err := assemble.Assemble(db, g, roots)
	require.NoError(t, err)

	a, err := NewArtifact("example", digest, db, res, []Output{{Name: "r", Net: r}})
	require.NoError(t, err)
	return a
}

func TestPutGetArtifact(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			s := createTestStore(t)
			a := testArtifact(t, order, 1.11)

			seq, err := s.PutArtifact(context.Background(), a)
			require.NoError(t, err)
			assert.Equal(t, int64(1), seq)

			got, err := s.GetArtifact(context.Background(), a.Key)
			require.NoError(t, err)
			assert.Equal(t, a.Stream, got.Stream)
			assert.Equal(t, a.Variables, got.Variables)
			assert.Equal(t, a.Outputs, got.Outputs)
			assert.Equal(t, order, got.Order)
			assert.Equal(t, a.EntryOffset, got.EntryOffset)
			assert.Equal(t, a.CodeSize, got.CodeSize)
			assert.Equal(t, a.DataSize, got.DataSize)
			assert.Equal(t, a.StencilsHash, got.StencilsHash)
			assert.Equal(t, "example", got.Name)
			assert.Equal(t, seq, got.Seq)
		})
	}
}

func TestPutArtifactIdempotent(t *testing.T) {
	s := createTestStore(t)
	a := testArtifact(t, binary.LittleEndian, 1.11)

	first, err := s.PutArtifact(context.Background(), a)
	require.NoError(t, err)
	again := testArtifact(t, binary.LittleEndian, 1.11)
	again.Name = "renamed"
	second, err := s.PutArtifact(context.Background(), again)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := s.GetArtifact(context.Background(), a.Key)
	require.NoError(t, err)
	assert.Equal(t, "example", got.Name)
	assert.Len(t, got.Outputs, 1)
}

func TestArtifactKeyDependsOnGraphAndStencils(t *testing.T) {
	base := testArtifact(t, binary.LittleEndian, 1.11)
	assert.Equal(t, base.Key, testArtifact(t, binary.LittleEndian, 1.11).Key)
	assert.NotEqual(t, base.Key, testArtifact(t, binary.LittleEndian, 2.5).Key)

	// Same graph, different stencil object.
	big := testArtifact(t, binary.BigEndian, 1.11)
	assert.Equal(t, base.GraphHash, big.GraphHash)
	assert.NotEqual(t, base.Key, big.Key)
}

func TestGetArtifactNotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetArtifact(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListArtifacts(t *testing.T) {
	s := createTestStore(t)

	list, err := s.ListArtifacts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	a := testArtifact(t, binary.LittleEndian, 1.11)
	b := testArtifact(t, binary.LittleEndian, 3.0)
	_, err = s.PutArtifact(context.Background(), a)
	require.NoError(t, err)
	_, err = s.PutArtifact(context.Background(), b)
	require.NoError(t, err)

	list, err = s.ListArtifacts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.Key, list[0].Key)
	assert.Equal(t, b.Key, list[1].Key)
	assert.Nil(t, list[0].Stream)
	assert.Equal(t, []Output{{Name: "r", Net: a.Outputs[0].Net}}, list[1].Outputs)
}

func TestDeleteArtifact(t *testing.T) {
	s := createTestStore(t)
	a := testArtifact(t, binary.LittleEndian, 1.11)
	_, err := s.PutArtifact(context.Background(), a)
	require.NoError(t, err)

	require.NoError(t, s.DeleteArtifact(context.Background(), a.Key))
	_, err = s.GetArtifact(context.Background(), a.Key)
	assert.ErrorIs(t, err, ErrNotFound)

	var outputs int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM artifact_outputs").Scan(&outputs))
	assert.Zero(t, outputs)

	require.NoError(t, s.DeleteArtifact(context.Background(), a.Key))
}

func TestPutArtifactRejectsUnknownOrder(t *testing.T) {
	s := createTestStore(t)
	a := testArtifact(t, binary.LittleEndian, 1.11)
	a.Order = binary.NativeEndian
	_, err := s.PutArtifact(context.Background(), a)
	assert.Error(t, err)
}
