// Package target is the compiler API. A Target owns one memory region:
// Compile schedules and assembles a graph, ships the command stream to
// the runtime and remembers where every heap net lives, so values can be
// read and written between runs.
//
// A Target must not be used from several goroutines at once; independent
// Targets share nothing.
package target
