package layers

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/roach88/dnnplan/internal/ir"
)

// threadsPerThreadgroup is the 1-D threadgroup width used by every kernel.
const threadsPerThreadgroup = 64

// kernelTemplates holds the shared prologue and one body per kernel shape.
// Every body runs after the bounds check on index.
var kernelTemplates = template.Must(template.New("msl").Parse(`
{{- define "prologue" -}}
#include <metal_stdlib>
using namespace metal;

kernel void {{.EntryPoint}}(const device float *weight_buffer [[buffer(0)]],
                            device float *data_buffer [[buffer(1)]],
                            uint index [[thread_position_in_grid]])
{
    if (index >= {{.Count}}) return;
{{end}}

{{- define "elementwise" -}}
{{template "prologue" .}}    const device float *x = data_buffer + {{.X}};
    device float *y = data_buffer + {{.Y}};
    const float v = x[index];
    y[index] = {{.Expr}};
}
{{end}}

{{- define "linear" -}}
{{template "prologue" .}}    const device float *x = data_buffer + {{.X}};
    const device float *w = weight_buffer + {{.W}};
{{- if .HasBias}}
    const device float *b = weight_buffer + {{.B}};
{{- end}}
    device float *y = data_buffer + {{.Y}};
    const uint n = index / {{.Out}};
    const uint o = index % {{.Out}};
    float sum = {{if .HasBias}}b[o]{{else}}0.0f{{end}};
    for (uint i = 0; i < {{.In}}; i++) {
        sum += x[n * {{.In}} + i] * w[i * {{.Out}} + o];
    }
    y[index] = sum;
}
{{end}}

{{- define "softmax_exp" -}}
{{template "prologue" .}}    const device float *x = data_buffer + {{.X}};
    device float *y = data_buffer + {{.Y}};
    device float *s = data_buffer + {{.T}};
    const uint base = index * {{.Channels}};
    float m = x[base];
    for (uint c = 1; c < {{.Channels}}; c++) {
        m = max(m, x[base + c]);
    }
    float sum = 0.0f;
    for (uint c = 0; c < {{.Channels}}; c++) {
        const float e = exp(x[base + c] - m);
        y[base + c] = e;
        sum += e;
    }
    s[index] = sum;
}
{{end}}

{{- define "softmax_normalize" -}}
{{template "prologue" .}}    device float *y = data_buffer + {{.Y}};
    const device float *s = data_buffer + {{.T}};
    y[index] = y[index] / s[index / {{.Channels}}];
}
{{end}}
`))

// kernelData is the template input. Count is the number of threads doing
// work; unused fields are ignored by the selected body.
type kernelData struct {
	EntryPoint string
	Count      int64
	X, Y, T    int64 // data arena offsets
	W, B       int64 // weight arena offsets
	HasBias    bool
	In, Out    int64
	Channels   int64
	Expr       string
}

// renderKernel executes one body template and wraps it in a descriptor
// launched over d.Count threads.
func renderKernel(body string, d kernelData) (ir.KernelDescriptor, error) {
	var buf bytes.Buffer
	if err := kernelTemplates.ExecuteTemplate(&buf, body, d); err != nil {
		return ir.KernelDescriptor{}, fmt.Errorf("render %s kernel: %w", body, err)
	}
	groups, threads, err := dispatch1D(d.Count)
	if err != nil {
		return ir.KernelDescriptor{}, err
	}
	return ir.KernelDescriptor{
		ThreadgroupsPerGrid:   groups,
		ThreadsPerThreadgroup: threads,
		KernelSource:          buf.String(),
		EntryPoint:            d.EntryPoint,
	}, nil
}

// dispatch1D covers count threads with threadgroups of threadsPerThreadgroup.
func dispatch1D(count int64) (groups, threads ir.LaunchSize, err error) {
	if count < 1 {
		return groups, threads, fmt.Errorf("kernel launch over %d thread(s)", count)
	}
	n := (count + threadsPerThreadgroup - 1) / threadsPerThreadgroup
	if groups, err = ir.NewLaunchSize(int(n)); err != nil {
		return groups, threads, err
	}
	threads, err = ir.NewLaunchSize(threadsPerThreadgroup)
	return groups, threads, err
}

// entryPoint builds a valid MSL identifier from the kind, the layer name and
// optional stage suffixes: "linear_fc1", "softmax_prob_exp".
func entryPoint(kind, layerName string, stages ...string) string {
	parts := []string{kind}
	if s := sanitizeIdent(layerName); s != "" {
		parts = append(parts, s)
	}
	parts = append(parts, stages...)
	return strings.Join(parts, "_")
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// floatLiteral formats v as an MSL float literal: 0.01 -> "0.01f", 1 -> "1.0f".
func floatLiteral(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s + "f"
}
