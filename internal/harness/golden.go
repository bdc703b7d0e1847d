package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/layout"
)

// Summary renders a fixed-format text summary of an artifact: both arenas,
// then one line per kernel. Kernel sources are left out.
func Summary(artifact *ir.PipelineArtifact) ([]byte, error) {
	var buf bytes.Buffer
	if err := layout.Describe(&buf, "weight", artifact.WeightBuffersAssignment); err != nil {
		return nil, err
	}
	if err := layout.Describe(&buf, "data", artifact.DataBuffersAssignment); err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "kernels: %d\n", len(artifact.Kernels))
	for i, k := range artifact.Kernels {
		fmt.Fprintf(&buf, "  #%d %s groups=%s threads=%s\n", i, k.EntryPoint,
			launchString(k.ThreadgroupsPerGrid), launchString(k.ThreadsPerThreadgroup))
	}
	fmt.Fprintf(&buf, "inputs: %v\n", artifact.Inputs)
	fmt.Fprintf(&buf, "outputs: %v\n", artifact.Outputs)
	return buf.Bytes(), nil
}

func launchString(l ir.LaunchSize) string {
	return fmt.Sprintf("%dx%dx%d", l.Width, l.Height, l.Depth)
}

// RunWithGolden runs a case and compares the artifact summary against a
// golden file stored in testdata/golden/{c.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the case cannot run or does not compile.
// Test failure (via goldie) occurs if the summary doesn't match.
func RunWithGolden(t *testing.T, c *Case) (*Result, error) {
	t.Helper()

	result, err := Run(c)
	if err != nil {
		return nil, err
	}
	if result.Artifact == nil {
		return result, fmt.Errorf("case %s: compilation failed: %w", c.Name, result.CompileErr)
	}
	if err := AssertGolden(t, c.Name, result.Artifact); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an artifact summary against testdata/golden/{name}.golden.
func AssertGolden(t *testing.T, name string, artifact *ir.PipelineArtifact) error {
	t.Helper()

	summary, err := Summary(artifact)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, summary)
	return nil
}
