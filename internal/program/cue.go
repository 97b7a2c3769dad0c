package program

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

func cuePos(p token.Pos) Pos {
	if !p.IsValid() {
		return Pos{}
	}
	return Pos{File: p.Filename(), Line: p.Line(), Column: p.Column()}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: cuePos(positions[0])}
	}
	return err
}

// ParseCUE parses a CUE program description. The program may sit at the
// top level or under a "program" field.
func ParseCUE(src []byte, filename string) (*Spec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if p := v.LookupPath(cue.ParsePath("program")); p.Exists() {
		v = p
	}

	spec := &Spec{}
	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Name = name
	}

	valuesVal := v.LookupPath(cue.ParsePath("values"))
	if !valuesVal.Exists() {
		return nil, &CompileError{Field: "values", Message: "values is required", Pos: cuePos(v.Pos())}
	}
	iter, err := valuesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		val, err := parseCUEValue(iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Values = append(spec.Values, val)
	}

	outputsVal := v.LookupPath(cue.ParsePath("outputs"))
	if !outputsVal.Exists() {
		return nil, &CompileError{Field: "outputs", Message: "outputs is required", Pos: cuePos(v.Pos())}
	}
	spec.Outputs, err = parseCUEArgs(outputsVal)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

func cueString(v cue.Value, field string) (string, bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func parseCUEValue(v cue.Value) (Value, error) {
	val := Value{Pos: cuePos(v.Pos())}

	name, ok, err := cueString(v, "name")
	if err != nil {
		return val, err
	}
	if !ok {
		return val, &CompileError{Field: "name", Message: "every value needs a name", Pos: val.Pos}
	}
	val.Name = name

	if val.Op, _, err = cueString(v, "op"); err != nil {
		return val, err
	}
	if val.To, _, err = cueString(v, "to"); err != nil {
		return val, err
	}

	if c := v.LookupPath(cue.ParsePath("const")); c.Exists() {
		lit, err := cueLiteral(c)
		if err != nil {
			return val, err
		}
		val.Const = lit
	}
	if a := v.LookupPath(cue.ParsePath("args")); a.Exists() {
		if val.Args, err = parseCUEArgs(a); err != nil {
			return val, err
		}
	}
	return val, nil
}

func parseCUEArgs(v cue.Value) ([]Arg, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var args []Arg
	for iter.Next() {
		item := iter.Value()
		arg := Arg{Pos: cuePos(item.Pos())}
		if item.IncompleteKind() == cue.StringKind {
			if arg.Ref, err = item.String(); err != nil {
				return nil, formatCUEError(err)
			}
		} else if arg.Literal, err = cueLiteral(item); err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

// cueLiteral converts a concrete CUE scalar into int64, float64 or bool.
func cueLiteral(v cue.Value) (any, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return i, nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return f, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	default:
		return nil, &CompileError{
			Field:   "literal",
			Message: fmt.Sprintf("unsupported literal kind: %v", v.IncompleteKind()),
			Pos:     cuePos(v.Pos()),
		}
	}
}
