package harness

import (
	"github.com/roach88/dnnplan/internal/compiler"
	"github.com/roach88/dnnplan/internal/ir"
)

// Result is the outcome of running a case.
type Result struct {
	// Pass indicates overall success: every assertion held.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Artifact is the compiled pipeline, nil if compilation failed.
	Artifact *ir.PipelineArtifact `json:"-"`

	// CompileErr is the compilation error, nil on success.
	CompileErr error `json:"-"`

	// ErrorCode is the E2xx code of CompileErr, empty on success.
	ErrorCode string `json:"error_code,omitempty"`

	// Warnings are the layer order findings for the graph.
	Warnings []compiler.OrderWarning `json:"warnings,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Errors:   []string{},
		Warnings: []compiler.OrderWarning{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
