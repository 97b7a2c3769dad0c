// Package interp is the reference semantics of the stencil catalogue.
//
// It provides three things that share one operation table:
//
//   - Catalog: the typed operation names and result dtypes a stencil
//     object built from the standard generator contains.
//   - Eval: direct evaluation of a graph, used as ground truth in tests.
//   - Machine: an executor for "virtual stencils", a byte-coded stand-in
//     for native machine code. StencilObject writes a complete virtual
//     stencil object as a relocatable ELF file with x86-64 relocations, so
//     the full compile pipeline (boundary detection, layout, patching) runs
//     unchanged and the Machine checks every patched address when it runs.
//
// Arithmetic follows the C stencils: 32-bit ints and floats, truncating
// casts, floor semantics for floordiv, 0/1 ints for comparisons.
package interp
