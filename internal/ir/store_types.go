package ir

// NOTE: store-layer record, not part of the artifact handed to the runtime.

// CompilationRecord is one entry of the compile cache.
type CompilationRecord struct {
	ID              string            `json:"id"`  // UUIDv7
	Seq             int64             `json:"seq"` // insertion order
	GraphName       string            `json:"graph_name"`
	GraphHash       string            `json:"graph_hash"`
	ArtifactHash    string            `json:"artifact_hash"`
	CompilerVersion string            `json:"compiler_version"`
	IRVersion       string            `json:"ir_version"`
	LayerCount      int               `json:"layer_count"`
	KernelCount     int               `json:"kernel_count"`
	WeightTotal     int64             `json:"weight_total"`
	DataTotal       int64             `json:"data_total"`
	Artifact        *PipelineArtifact `json:"artifact,omitempty"` // nil in listings
}

// KernelRecord is the stored summary of one kernel of a compilation.
type KernelRecord struct {
	CompilationID         string     `json:"compilation_id"`
	Position              int        `json:"position"`
	EntryPoint            string     `json:"entry_point"`
	ThreadgroupsPerGrid   LaunchSize `json:"threadgroups_per_grid"`
	ThreadsPerThreadgroup LaunchSize `json:"threads_per_threadgroup"`
	SourceBytes           int        `json:"source_bytes"`
}
