package program

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Arg is an operand: a reference to an earlier value or a literal.
type Arg struct {
	Ref     string
	Literal any
	Pos     Pos
}

// Value is one entry of a program: a constant or an operation.
type Value struct {
	Name  string
	Const any
	Op    string
	Args  []Arg
	To    string
	Pos   Pos
}

// Spec is a parsed program description.
type Spec struct {
	Name    string
	Values  []Value
	Outputs []Arg
}

// Pos is a source position.
type Pos struct {
	File   string
	Line   int
	Column int
}

// IsValid reports whether the position points into a file.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// CompileError is a load or build error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a program description, choosing the format by extension.
func Load(path string) (*Spec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load program: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(src, path)
	case ".yaml", ".yml":
		return ParseYAML(src, path)
	default:
		return nil, fmt.Errorf("load program: unknown format %q (want .cue, .yaml or .yml)", filepath.Ext(path))
	}
}
