// Package harness runs end-to-end conformance scenarios against the
// compiler and the virtual runtime.
//
// A scenario names a program file, optional heap writes, the number of
// runs, expected output values and extra assertions. Each scenario runs
// in a fresh target backed by the virtual stencil object, so results do
// not depend on the host CPU.
//
// # Scenario Format
//
//	name: example
//	description: "(1.11 * 2) + 7"
//	program: ../programs/example.yaml
//	order: little
//	runs: 1
//	setup:
//	  - write: c
//	    value: 2.5
//	expect:
//	  r: 9.22
//	tolerance: 1e-5
//	assertions:
//	  - type: matches_reference
//	  - type: stream_count
//	    op: PATCH_OBJECT
//	    count: 4
//
// # Assertion Types
//
//   - matches_reference: every output equals interp.Eval of the graph
//   - dtype: an output reads back with the given dtype
//   - stream_count: the compiled stream holds exactly count records of op
//   - heap_nets: the program uses exactly count heap cells
//   - steps: the schedule has exactly count fragments
//
// # Deterministic Testing
//
// Trace events are numbered by a logical clock and target IDs are derived
// from the scenario name, so two runs of a scenario produce identical
// traces for golden comparison.
package harness
