// Package tree implements the tree-structured text codec (block YAML).
//
// Decode accepts general YAML (block or flow mappings and sequences,
// anchors and aliases, merge keys) and produces a value.Value. Plain
// scalars are typed with value.Infer; quoted scalars are always strings.
//
// Encode only writes the shape the rest of the system produces: a sequence
// of mappings. Each element opens with a "-" line followed by its fields,
// indented by four spaces:
//
//	-
//	    name: Ada
//	    age: 36
package tree

import (
	"bytes"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/value"
)

const (
	// ReasonMalformed is reported for syntax and indentation errors
	ReasonMalformed = "malformed tree syntax"
	// ReasonUnsupportedShape is reported when Encode is given anything
	// other than a sequence of mappings
	ReasonUnsupportedShape = "unsupported tree shape"

	maxDepth = 1000
)

// Decode parses data into a Value. An empty document decodes to an empty
// Sequence. Only the first document of a multi-document stream is read.
func Decode(data []byte) (value.Value, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return value.Sequence{}, nil
		}
		return nil, errors.Encoding(ReasonMalformed).WithDetail("reason", err.Error())
	}
	return convert(&doc, 0)
}

func convert(n *yaml.Node, depth int) (value.Value, error) {
	if depth > maxDepth {
		return nil, errors.Encoding(ReasonMalformed).WithDetail("reason", "nesting too deep")
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value.Sequence{}, nil
		}
		return convert(n.Content[0], depth+1)

	case yaml.SequenceNode:
		seq := make(value.Sequence, 0, len(n.Content))
		for _, child := range n.Content {
			v, err := convert(child, depth+1)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil

	case yaml.MappingNode:
		m := value.NewMapping()
		if err := fillMapping(m, n, depth); err != nil {
			return nil, err
		}
		return m, nil

	case yaml.ScalarNode:
		return scalar(n), nil

	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, errors.Encoding(ReasonMalformed).WithDetail("reason", "unknown alias")
		}
		return convert(n.Alias, depth+1)

	default:
		return nil, errors.Encoding(ReasonMalformed).WithDetail("line", n.Line)
	}
}

func fillMapping(m *value.Mapping, n *yaml.Node, depth int) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return errors.Encoding(ReasonMalformed).
				WithDetail("reason", "mapping keys must be scalars").
				WithDetail("line", key.Line)
		}

		if key.Tag == "!!merge" {
			if err := merge(m, val, depth); err != nil {
				return err
			}
			continue
		}

		v, err := convert(val, depth+1)
		if err != nil {
			return err
		}
		m.Set(key.Value, v)
	}
	return nil
}

// merge copies the entries of a "<<" source without overriding keys that
// are already present.
func merge(m *value.Mapping, src *yaml.Node, depth int) error {
	sources := []*yaml.Node{src}
	if src.Kind == yaml.SequenceNode {
		sources = src.Content
	}

	for _, s := range sources {
		v, err := convert(s, depth+1)
		if err != nil {
			return err
		}
		other, ok := v.(*value.Mapping)
		if !ok {
			return errors.Encoding(ReasonMalformed).
				WithDetail("reason", "merge source is not a mapping").
				WithDetail("line", s.Line)
		}
		other.Each(func(key string, child value.Value) bool {
			if _, exists := m.Get(key); !exists {
				m.Set(key, child)
			}
			return true
		})
	}
	return nil
}

func scalar(n *yaml.Node) value.Scalar {
	quoted := n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0
	explicitString := n.Style&yaml.TaggedStyle != 0 && n.Tag == "!!str"

	switch {
	case quoted || explicitString:
		return value.StringValue(n.Value)
	case n.Tag == "!!null":
		return value.NullValue()
	default:
		return value.Infer(n.Value)
	}
}
