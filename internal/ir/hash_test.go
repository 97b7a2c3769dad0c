package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphHashDeterminism(t *testing.T) {
	graph := IRObject{
		"nodes": IRArray{IRString("const_int"), IRString("add_int_int")},
		"roots": IRArray{IRInt(1)},
	}

	h1, err := GraphHash(graph)
	require.NoError(t, err)
	h2, err := GraphHash(graph)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "GraphHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestGraphHashChangesWithContent(t *testing.T) {
	h1, err := GraphHash(IRObject{"roots": IRArray{IRInt(1)}})
	require.NoError(t, err)
	h2, err := GraphHash(IRObject{"roots": IRArray{IRInt(2)}})
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{}`)
	graph, err := GraphHash(IRObject{})
	require.NoError(t, err)

	assert.Equal(t, hashWithDomain(DomainGraph, data), graph)
	assert.NotEqual(t, hashWithDomain(DomainStencils, data), graph,
		"same bytes under different domains must hash differently")
	assert.Equal(t, hashWithDomain(DomainStencils, data), StencilsHash(data))
}

func TestArtifactKey(t *testing.T) {
	k1, err := ArtifactKey("g1", "s1")
	require.NoError(t, err)
	k2, err := ArtifactKey("g1", "s2")
	require.NoError(t, err)
	k3, err := ArtifactKey("g1", "s1")
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, k3)
}
