package interp

// Virtual stencil encoding.
//
// A stencil function body is
//
//	opFragment len name...   header naming the stencil
//	opHeap rel32             heap cell of the stencil's net (loads, stores)
//	opCall rel32             call of an auxiliary function
//	opJump rel32             continuation, stripped when stitched
//
// An auxiliary function is opAux len name, any opConst rel32 records and
// opRet. The entry shell is opEnter opJump rel32 opRet.
//
// Every rel32 field is PC-relative like x86-64: the address it refers to
// is the field offset + 4 + the stored value.
const (
	opEnter    byte = 0xF0
	opFragment byte = 0xF1
	opAux      byte = 0xF2
	opHeap     byte = 0xA1
	opConst    byte = 0xA2
	opCall     byte = 0xE8
	opJump     byte = 0xE9
	opRet      byte = 0xC3
)

// fieldLen is the size of a rel32 field.
const fieldLen = 4

// DataBase is where the Machine maps the data region, relative to the
// start of code. Runtimes executing virtual stencils must report
// DataBase as the data-minus-code distance.
const DataBase = 0x10000000
