// Package harness provides conformance testing for compiled pipelines.
//
// A case names a graph file and states what compiling it must produce.
//
// # Case Format
//
// Cases are defined in YAML files with the following structure:
//
//	name: relu_basic
//	description: "What this case validates"
//	graph: ../graphs/relu.json
//	assertions:
//	  - type: layout
//	    arena: data
//	    total_size: 8
//	    offsets: [0, 4]
//	  - type: kernel_count
//	    count: 1
//	  - type: entry_points
//	    entry_points: [relu_r1]
//	  - type: outputs
//	    inputs: [[-1, 2, -3, 4]]
//	    expect: [[0, 2, 0, 4]]
//
// The graph path is relative to the case file.
//
// # Assertion Types
//
//   - compile_error: compilation fails with the given E2xx code
//   - layout: an arena's total size and, optionally, every buffer offset
//   - kernel_count: the artifact has exactly N kernels
//   - entry_points: the kernels' entry points, in launch order
//   - outputs: running the artifact on the CPU reference executor with the
//     given weights and inputs yields the expected outputs
//   - order_warnings: the layer order analysis reports exactly N warnings
//
// # Deterministic Testing
//
// Each successful compilation is recorded in a fresh in-memory store and read
// back; the stored artifact must hash identically. RunWithGolden compares a
// fixed-format layout summary against testdata/golden/<name>.golden.
//
// # Usage
//
//	c, err := harness.LoadCase("testdata/cases/relu.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(c)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
