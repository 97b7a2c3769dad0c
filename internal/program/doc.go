// Package program loads program descriptions from CUE or YAML files and
// builds them into graphs.
//
// Both formats share one shape: a named list of values, each either a
// constant or an operation over earlier values and literals, and the list
// of values to compute.
//
//	program: {
//		name: "example"
//		values: [
//			{name: "c", const: 1.11},
//			{name: "m", op: "mul", args: ["c", 2]},
//			{name: "r", op: "add", args: ["m", 7]},
//		]
//		outputs: ["r"]
//	}
//
// In YAML the same fields sit at the top level. String arguments refer to
// earlier values by name; numbers and booleans become constants. Integer
// literals are ints and literals with a decimal point are floats.
package program
