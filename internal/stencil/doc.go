// Package stencil reads a compiled stencil object and exposes its fragments.
//
// A stencil object is an ordinary relocatable ELF file. Every primitive
// typed operation is compiled as a function named after the operation
// ("add_float_int") whose last instruction is a tail call or jump to an
// undefined result_<dtype>[_<dtype>] symbol. That final relocation marks
// the end of the fragment and names its result dtype.
//
// Fragment boundary detection:
//
//	function start                      final call/jump     function end
//	|------------- fragment ------------|E9 rel32 ........|
//	                                    ^ excluded
//
// The call encoding itself is dropped. When fragments are stitched, the
// next fragment sits exactly where the call would have landed, so control
// falls through from one fragment to the next.
//
// Auxiliary functions (anything a fragment calls that is not a
// continuation) are copied whole, and constant data sections they or the
// fragments reference are copied to the data region.
package stencil
