// Package assemble lays out memory for a scheduled graph and emits the
// command stream that builds, patches and enters the stitched program.
//
// Data layout: the constant sections stencils reference come first, then
// one cell per heap net. Code layout: auxiliary functions first, then the
// entry shell prologue, every fragment in schedule order and the epilogue.
// Every offset is 4-byte aligned except fragments, which are concatenated
// so each falls through into the next.
package assemble
