package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainGraph    = "stitch/graph/v1"
	DomainStencils = "stitch/stencils/v1"
	DomainArtifact = "stitch/artifact/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphHash hashes the canonical form of a data-flow graph.
func GraphHash(graph IRObject) (string, error) {
	canonical, err := MarshalCanonical(graph)
	if err != nil {
		return "", fmt.Errorf("GraphHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// StencilsHash hashes the raw bytes of a stencil object file.
func StencilsHash(object []byte) string {
	return hashWithDomain(DomainStencils, object)
}

// ArtifactKey combines a graph hash and a stencils hash into the cache key
// of a compiled command stream.
func ArtifactKey(graphHash, stencilsHash string) (string, error) {
	canonical, err := MarshalCanonical(IRObject{
		"graph":    IRString(graphHash),
		"stencils": IRString(stencilsHash),
	})
	if err != nil {
		return "", fmt.Errorf("ArtifactKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainArtifact, canonical), nil
}
