// Package graph provides the value/operation data-flow graph for stitch.
//
// A Graph is an arena of Nodes and Nets addressed by stable integer handles
// (NodeID, NetID). Identity is handle identity: two Nets holding equal
// constants are still distinct values and get distinct heap slots.
//
// Key constraints:
//   - Every Net has exactly one producing Node
//   - Arena entries only reference earlier entries, so the graph is acyclic
//     by construction
//   - Constants are never deduplicated
//   - Typed operation names follow "<op>_<dtype1>_<dtype2>"; operands of
//     commutative operations are ordered by dtype name first
//
// The graph is built once through the builder methods (Constant, Op, Add,
// Mul, ...) and treated as immutable by the scheduler and assembler.
package graph
