// Package schedule linearizes a data-flow graph into the fragment sequence
// the assembler stitches together.
//
// Scheduling runs in three passes:
//  1. CollectEdges walks back from Store roots to every producer.
//  2. TopologicalOrder sorts the nodes with Kahn's algorithm, breaking ties
//     by first-discovery order so identical graphs schedule identically.
//  3. InsertLoads and InsertStores simulate two register slots and add the
//     load and spill pseudo-ops that move nets between slots and the heap.
//
// The resulting Plan, executed fragment by fragment under the two-slot
// discipline, computes exactly the values the graph describes.
//
// Slot discipline:
//   - Every fragment receives slot 0 and slot 1 and passes both on.
//   - An op consumes its operands from slots 0 and 1 in order and leaves its
//     result in slot 0. Slot 1 is passed through unchanged.
//   - A load replaces one slot with a heap net. A store writes slot 0 to
//     the heap without touching either slot.
//   - Fragments are specialised by the dtypes currently held in both slots,
//     so the stencil name of a load or store spells out both. An empty slot
//     reads as int.
package schedule
