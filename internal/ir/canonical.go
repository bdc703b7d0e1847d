package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 style canonical JSON for hashing.
// This is the ONLY serialization used for content-addressed identity.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats and no null (returns error)
//  5. json.Number values are emitted exactly as written
//
// Accepted inputs: string, int, int64, bool, json.Number, []any,
// map[string]any, and values of those kinds nested arbitrarily.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return writeCanonicalString(buf, val)
	case int:
		fmt.Fprintf(buf, "%d", val)
	case int64:
		fmt.Fprintf(buf, "%d", val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range sortedKeys(val) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case float64, float32:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes a JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped; U+2028 and
// U+2029 are written literally.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var enc bytes.Buffer
	e := json.NewEncoder(&enc)
	e.SetEscapeHTML(false)
	if err := e.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	// json.Encoder adds a trailing newline
	out := bytes.TrimSuffix(enc.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators undoes the \u2028 and \u2029 escapes that
// encoding/json applies for JavaScript compatibility. Escaped backslashes
// are skipped as a pair so a literal `\\u2028` text stays intact.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		if data[i+1] == 'u' && i+6 <= len(data) && string(data[i+2:i+5]) == "202" {
			switch data[i+5] {
			case '8':
				out = append(out, "\u2028"...)
				i += 5
				continue
			case '9':
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		out = append(out, data[i], data[i+1])
		i++
	}
	return out
}

// sortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings orders by UTF-8 bytes, which differs for supplementary planes.
func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// canonicalInts converts an index or dimension list into canonical form.
// A nil list becomes an empty array.
func canonicalInts[T int | int64](vals []T) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = int64(v)
	}
	return out
}

// canonicalParams decodes raw layer params keeping numbers as written.
func canonicalParams(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	return dropNulls(v), nil
}

// dropNulls removes null object members, which canonical JSON cannot carry.
func dropNulls(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			if elem == nil {
				delete(val, k)
				continue
			}
			val[k] = dropNulls(elem)
		}
	case []any:
		for i, elem := range val {
			val[i] = dropNulls(elem)
		}
	}
	return v
}

// CanonicalValue returns the graph as a tree accepted by MarshalCanonical.
func (g *Graph) CanonicalValue() (map[string]any, error) {
	layers := make([]any, len(g.Layers))
	for i, l := range g.Layers {
		m := map[string]any{
			"name":        l.Name,
			"type":        l.Type,
			"bottoms":     canonicalInts(l.Bottoms),
			"tops":        canonicalInts(l.Tops),
			"temporaries": canonicalInts(l.Temporaries),
			"weights":     canonicalInts(l.Weights),
		}
		if len(bytes.TrimSpace(l.Params)) > 0 && string(bytes.TrimSpace(l.Params)) != "null" {
			p, err := canonicalParams(l.Params)
			if err != nil {
				return nil, fmt.Errorf("layer %q: %w", l.Name, err)
			}
			m["params"] = p
		}
		layers[i] = m
	}
	out := map[string]any{
		"layers":        layers,
		"inputs":        canonicalInts(g.Inputs),
		"outputs":       canonicalInts(g.Outputs),
		"data_shapes":   canonicalShapes(g.DataShapes),
		"weight_shapes": canonicalShapes(g.WeightShapes),
	}
	if g.Name != "" {
		out["name"] = g.Name
	}
	return out, nil
}

func canonicalShapes(shapes []Shape) []any {
	out := make([]any, len(shapes))
	for i, s := range shapes {
		out[i] = canonicalInts(s)
	}
	return out
}

func canonicalLayout(a LayoutAssignment) map[string]any {
	buffers := make([]any, len(a.Buffers))
	for i, b := range a.Buffers {
		buffers[i] = map[string]any{
			"shape":  canonicalInts(b.Shape),
			"offset": b.Offset,
			"size":   b.Size,
		}
	}
	return map[string]any{
		"buffers":    buffers,
		"total_size": a.TotalSize,
	}
}

func canonicalLaunch(l LaunchSize) map[string]any {
	return map[string]any{
		"width":  l.Width,
		"height": l.Height,
		"depth":  l.Depth,
	}
}

// CanonicalValue returns the artifact as a tree accepted by MarshalCanonical.
func (a *PipelineArtifact) CanonicalValue() map[string]any {
	kernels := make([]any, len(a.Kernels))
	for i, k := range a.Kernels {
		kernels[i] = map[string]any{
			"threadgroups_per_grid":   canonicalLaunch(k.ThreadgroupsPerGrid),
			"threads_per_threadgroup": canonicalLaunch(k.ThreadsPerThreadgroup),
			"kernel_source":           k.KernelSource,
			"entry_point":             k.EntryPoint,
		}
	}
	return map[string]any{
		"weight_buffers_assignment": canonicalLayout(a.WeightBuffersAssignment),
		"data_buffers_assignment":   canonicalLayout(a.DataBuffersAssignment),
		"kernels":                   kernels,
		"inputs":                    canonicalInts(a.Inputs),
		"outputs":                   canonicalInts(a.Outputs),
	}
}
