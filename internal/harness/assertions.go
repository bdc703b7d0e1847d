package harness

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/reference"
)

const defaultTolerance = 1e-9

// EvaluateAssertions checks every assertion and returns one message per
// failure. Assertions other than compile_error fail when compilation failed.
func EvaluateAssertions(g *ir.Graph, result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(g, result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return failures
}

func evaluateAssertion(g *ir.Graph, result *Result, a Assertion) error {
	if a.Type == AssertCompileError {
		return assertCompileError(result, a)
	}
	if a.Type == AssertOrderWarnings {
		if n := len(result.Warnings); n != *a.Count {
			return fmt.Errorf("expected %d order warning(s), got %d", *a.Count, n)
		}
		return nil
	}
	if result.Artifact == nil {
		return fmt.Errorf("compilation failed: %v", result.CompileErr)
	}

	switch a.Type {
	case AssertLayout:
		return assertLayout(result.Artifact, a)
	case AssertKernelCount:
		if n := len(result.Artifact.Kernels); n != *a.Count {
			return fmt.Errorf("expected %d kernel(s), got %d", *a.Count, n)
		}
	case AssertEntryPoints:
		got := make([]string, len(result.Artifact.Kernels))
		for i, k := range result.Artifact.Kernels {
			got[i] = k.EntryPoint
		}
		if !slices.Equal(got, a.EntryPoints) {
			return fmt.Errorf("expected entry points %v, got %v", a.EntryPoints, got)
		}
	case AssertOutputs:
		return assertOutputs(g, result.Artifact, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func assertCompileError(result *Result, a Assertion) error {
	if result.CompileErr == nil {
		return fmt.Errorf("expected compile error %s, compilation succeeded", a.Code)
	}
	if result.ErrorCode != a.Code {
		return fmt.Errorf("expected compile error %s, got %s: %v", a.Code, result.ErrorCode, result.CompileErr)
	}
	return nil
}

func assertLayout(artifact *ir.PipelineArtifact, a Assertion) error {
	la := artifact.DataBuffersAssignment
	if a.Arena == "weight" {
		la = artifact.WeightBuffersAssignment
	}
	if a.TotalSize != nil && la.TotalSize != *a.TotalSize {
		return fmt.Errorf("expected %s arena total size %d, got %d", a.Arena, *a.TotalSize, la.TotalSize)
	}
	if a.Offsets != nil {
		got := make([]int64, len(la.Buffers))
		for i, b := range la.Buffers {
			got[i] = b.Offset
		}
		if !slices.Equal(got, a.Offsets) {
			return fmt.Errorf("expected %s arena offsets %v, got %v", a.Arena, a.Offsets, got)
		}
	}
	return nil
}

func assertOutputs(g *ir.Graph, artifact *ir.PipelineArtifact, a Assertion) error {
	outputs, err := reference.Run(g, artifact, a.Weights, a.Inputs)
	if err != nil {
		return fmt.Errorf("reference run: %w", err)
	}
	if len(outputs) != len(a.Expect) {
		return fmt.Errorf("expected %d output(s), got %d", len(a.Expect), len(outputs))
	}
	tol := a.Tolerance
	if tol == 0 {
		tol = defaultTolerance
	}
	for i, want := range a.Expect {
		got := outputs[i]
		if len(got) != len(want) {
			return fmt.Errorf("output %d: expected %d value(s), got %d", i, len(want), len(got))
		}
		for j := range want {
			if math.Abs(got[j]-want[j]) > tol {
				return fmt.Errorf("output %d[%d]: expected %g, got %g (tolerance %g)", i, j, want[j], got[j], tol)
			}
		}
	}
	return nil
}
