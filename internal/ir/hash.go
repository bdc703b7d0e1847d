package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for future algorithm migration.
const (
	DomainGraph    = "dnnplan/graph/v1"
	DomainArtifact = "dnnplan/artifact/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphHash computes the content hash of a graph.
// Two graphs that differ only in JSON formatting or param key order hash equal.
func GraphHash(g *Graph) (string, error) {
	v, err := g.CanonicalValue()
	if err != nil {
		return "", fmt.Errorf("GraphHash: %w", err)
	}
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("GraphHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// ArtifactHash computes the content hash of a compiled pipeline.
func ArtifactHash(a *PipelineArtifact) (string, error) {
	canonical, err := MarshalCanonical(a.CanonicalValue())
	if err != nil {
		return "", fmt.Errorf("ArtifactHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainArtifact, canonical), nil
}

// MustGraphHash is like GraphHash but panics on error.
// Use only in tests or when the graph is known to be valid.
func MustGraphHash(g *Graph) string {
	h, err := GraphHash(g)
	if err != nil {
		panic(err)
	}
	return h
}
