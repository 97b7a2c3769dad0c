// Package runner executes command streams.
//
// A Runner decodes a stream record by record and drives a Memory, which
// owns the code and data regions of one compiled program. HeapMemory keeps
// both regions in Go slices and hands execution to an Executor; on linux
// NativeMemory maps real pages and jumps into the stitched machine code.
package runner
