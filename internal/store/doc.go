// Package store caches compiled command streams in SQLite.
//
// An artifact is keyed by the content hash of the graph it was compiled
// from and the hash of the stencil object it was assembled against, so a
// cached stream is only reused when both are unchanged. Replaying a cached
// stream into a runner reproduces the compiled program without running the
// scheduler or the assembler.
//
// # Ordering
//
// Artifacts carry a seq column assigned on insert. Listings are ordered by
// seq ASC, never by wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Keys are computed by ir.ArtifactKey using canonical JSON and SHA-256 with
// domain separation.
package store
