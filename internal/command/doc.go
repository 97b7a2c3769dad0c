// Package command encodes and decodes the command stream, the only
// interface between the compiler and an execution runtime.
//
// A stream is a sequence of records. Each record starts with a 4-byte
// opcode followed by fixed 4-byte operands and, for the copy commands, raw
// payload bytes. All integers use the byte order of the stencil object.
//
//	ALLOCATE_DATA size          COPY_DATA offset size bytes
//	ALLOCATE_CODE size          COPY_CODE offset size bytes
//	PATCH_FUNC offset kind value        (value is a signed int32)
//	PATCH_OBJECT offset kind value      (runtime adds data - code)
//	ENTRY_POINT offset          RUN_PROG
//	READ_DATA offset size       FREE_MEMORY
//	DUMP_CODE                   END_COM
package command
