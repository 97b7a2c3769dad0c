// Package ir provides the canonical value encoding and content hashing used
// for stitch cache keys.
//
// This package imports nothing internal. Other packages convert their own
// structures (graphs, stencil objects) into IR values and hash them here.
//
// Key design constraints:
//   - NO float types - float constants are hashed by their IEEE-754 bit
//     pattern (as IRInt) so equal programs always hash equally
//   - Object keys are ordered by UTF-16 code units (RFC 8785)
//   - Strings are NFC normalised before hashing
package ir
