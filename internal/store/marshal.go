package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/dnnplan/internal/ir"
)

// marshalArtifact converts an artifact to canonical JSON TEXT for storage.
func marshalArtifact(a *ir.PipelineArtifact) (string, error) {
	data, err := ir.MarshalCanonical(a.CanonicalValue())
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}
	return string(data), nil
}

// unmarshalArtifact parses stored artifact JSON and checks it still hashes
// to wantHash.
func unmarshalArtifact(data, wantHash string) (*ir.PipelineArtifact, error) {
	var a ir.PipelineArtifact
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	got, err := ir.ArtifactHash(&a)
	if err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	if got != wantHash {
		return nil, fmt.Errorf("unmarshal artifact: hash %s does not match recorded %s", got, wantHash)
	}
	return &a, nil
}
