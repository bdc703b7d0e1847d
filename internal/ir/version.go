package ir

// Version constants for the IR schema and compiler.
const (
	// IRVersion is the graph/artifact schema version.
	IRVersion = "1"

	// CompilerVersion is the dnnplan compiler version. Cached artifacts are
	// only reused when this matches.
	CompilerVersion = "0.1.0"
)
