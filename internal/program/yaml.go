package program

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseYAML parses a YAML program description.
func ParseYAML(src []byte, filename string) (*Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, &CompileError{Field: "yaml", Message: err.Error(), Pos: Pos{File: filename}}
	}
	if len(doc.Content) == 0 {
		return nil, &CompileError{Field: "yaml", Message: "empty document", Pos: Pos{File: filename}}
	}
	root := doc.Content[0]
	pos := func(n *yaml.Node) Pos {
		return Pos{File: filename, Line: n.Line, Column: n.Column}
	}
	if root.Kind != yaml.MappingNode {
		return nil, &CompileError{Field: "program", Message: "expected a mapping", Pos: pos(root)}
	}

	spec := &Spec{}
	var sawValues, sawOutputs bool
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "name":
			spec.Name = val.Value
		case "values":
			sawValues = true
			if val.Kind != yaml.SequenceNode {
				return nil, &CompileError{Field: "values", Message: "expected a list", Pos: pos(val)}
			}
			for _, item := range val.Content {
				v, err := parseYAMLValue(item, pos)
				if err != nil {
					return nil, err
				}
				spec.Values = append(spec.Values, v)
			}
		case "outputs":
			sawOutputs = true
			args, err := parseYAMLArgs(val, pos)
			if err != nil {
				return nil, err
			}
			spec.Outputs = args
		default:
			return nil, &CompileError{Field: key.Value, Message: "unknown field", Pos: pos(key)}
		}
	}
	if !sawValues {
		return nil, &CompileError{Field: "values", Message: "values is required", Pos: pos(root)}
	}
	if !sawOutputs {
		return nil, &CompileError{Field: "outputs", Message: "outputs is required", Pos: pos(root)}
	}
	return spec, nil
}

func parseYAMLValue(n *yaml.Node, pos func(*yaml.Node) Pos) (Value, error) {
	val := Value{Pos: pos(n)}
	if n.Kind != yaml.MappingNode {
		return val, &CompileError{Field: "values", Message: "each value must be a mapping", Pos: pos(n)}
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, item := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "name":
			val.Name = item.Value
		case "op":
			val.Op = item.Value
		case "to":
			val.To = item.Value
		case "const":
			lit, err := yamlLiteral(item, pos)
			if err != nil {
				return val, err
			}
			val.Const = lit
		case "args":
			args, err := parseYAMLArgs(item, pos)
			if err != nil {
				return val, err
			}
			val.Args = args
		default:
			return val, &CompileError{Field: key.Value, Message: "unknown field", Pos: pos(key)}
		}
	}
	if val.Name == "" {
		return val, &CompileError{Field: "name", Message: "every value needs a name", Pos: val.Pos}
	}
	return val, nil
}

func parseYAMLArgs(n *yaml.Node, pos func(*yaml.Node) Pos) ([]Arg, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, &CompileError{Field: "args", Message: "expected a list", Pos: pos(n)}
	}
	var args []Arg
	for _, item := range n.Content {
		arg := Arg{Pos: pos(item)}
		if item.Kind == yaml.ScalarNode && item.ShortTag() == "!!str" {
			arg.Ref = item.Value
		} else {
			lit, err := yamlLiteral(item, pos)
			if err != nil {
				return nil, err
			}
			arg.Literal = lit
		}
		args = append(args, arg)
	}
	return args, nil
}

// yamlLiteral converts a scalar node into int64, float64 or bool.
func yamlLiteral(n *yaml.Node, pos func(*yaml.Node) Pos) (any, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, &CompileError{Field: "literal", Message: "expected a scalar", Pos: pos(n)}
	}
	var (
		v   any
		err error
	)
	switch n.ShortTag() {
	case "!!int":
		v, err = strconv.ParseInt(n.Value, 0, 64)
	case "!!float":
		v, err = strconv.ParseFloat(n.Value, 64)
	case "!!bool":
		var b bool
		err = n.Decode(&b)
		v = b
	default:
		return nil, &CompileError{Field: "literal", Message: fmt.Sprintf("unsupported literal %s %q", n.ShortTag(), n.Value), Pos: pos(n)}
	}
	if err != nil {
		return nil, &CompileError{Field: "literal", Message: err.Error(), Pos: pos(n)}
	}
	return v, nil
}
