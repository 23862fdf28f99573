// Package hierarchical implements the hierarchical-key codec.
//
// Source documents are either JSON objects and arrays (comments and
// trailing commas allowed) or line-oriented records:
//
//	# first record
//	user.name=Ada
//	user.age: 36
//
//	user.name=Grace
//
// Either way the top-level keys of every record are dotted paths, and
// decoding re-nests them, so both forms above produce
// {user: {name: Ada, age: 36}} for the first record.
//
// Encoding goes the other direction without re-nesting: every row becomes
// one flat JSON object whose keys are the row's dotted field names.
package hierarchical

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/tidwall/jsonc"

	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/path"
	"github.com/ajitpratap0/nebula-convert/pkg/value"
)

// ReasonMalformed is reported for invalid JSON and unparseable lines
const ReasonMalformed = "malformed hierarchical syntax"

const maxDepth = 1000

// Decode parses data into a Value. A single record decodes to a Mapping,
// several records to a Sequence. Empty input decodes to an empty Sequence.
func Decode(data []byte) (value.Value, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
	if len(trimmed) == 0 {
		return value.Sequence{}, nil
	}

	var (
		v   value.Value
		err error
	)
	if stripped := bytes.TrimSpace(jsonc.ToJSON(trimmed)); len(stripped) > 0 && (stripped[0] == '{' || stripped[0] == '[') {
		v, err = decodeJSON(stripped)
	} else {
		v, err = decodeLines(trimmed)
	}
	if err != nil {
		return nil, err
	}
	return renest(v), nil
}

func malformed() *errors.Error {
	return errors.Encoding(ReasonMalformed)
}

// decodeJSON reads data (already stripped of comments) token by token so
// that object key order survives.
func decodeJSON(data []byte) (value.Value, error) {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := readValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, malformed().WithDetail("reason", "trailing data after document")
	}
	return v, nil
}

func readValue(dec *gojson.Decoder, depth int) (value.Value, error) {
	if depth > maxDepth {
		return nil, malformed().WithDetail("reason", "nesting too deep")
	}

	tok, err := dec.Token()
	if err != nil {
		return nil, malformed().WithDetail("reason", err.Error())
	}

	switch t := tok.(type) {
	case gojson.Delim:
		switch t {
		case '{':
			m := value.NewMapping()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, malformed().WithDetail("reason", err.Error())
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, malformed().WithDetail("reason", "object key is not a string")
				}
				child, err := readValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				m.Set(key, child)
			}
			if err := closing(dec, '}'); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			seq := value.Sequence{}
			for dec.More() {
				child, err := readValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				seq = append(seq, child)
			}
			if err := closing(dec, ']'); err != nil {
				return nil, err
			}
			return seq, nil
		default:
			return nil, malformed().WithDetail("reason", "unexpected "+string(rune(t)))
		}
	case string:
		return value.StringValue(t), nil
	case gojson.Number:
		s, ok := value.NumberValue(t.String())
		if !ok {
			return nil, malformed().WithDetail("reason", "invalid number "+t.String())
		}
		return s, nil
	case bool:
		return value.BoolValue(t), nil
	case nil:
		return value.NullValue(), nil
	default:
		return nil, malformed()
	}
}

func closing(dec *gojson.Decoder, want gojson.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return malformed().WithDetail("reason", err.Error())
	}
	if d, ok := tok.(gojson.Delim); !ok || d != want {
		return malformed().WithDetail("reason", "expected "+string(rune(want)))
	}
	return nil
}

// decodeLines reads key=value / key: value records separated by blank
// lines. Values may be double-quoted (Go escapes) or single-quoted.
func decodeLines(data []byte) (value.Value, error) {
	var (
		records value.Sequence
		current *value.Mapping
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			current = nil
			continue
		}
		if strings.HasPrefix(text, "#") {
			continue
		}

		key, raw, ok := splitLine(text)
		if !ok {
			return nil, malformed().WithDetail("line", line)
		}
		s, err := lineScalar(raw)
		if err != nil {
			return nil, malformed().WithDetail("line", line).WithDetail("reason", err.Error())
		}

		if current == nil {
			current = value.NewMapping()
			records = append(records, current)
		}
		current.Set(key, s)
	}
	if err := sc.Err(); err != nil {
		return nil, malformed().WithDetail("reason", err.Error())
	}

	switch len(records) {
	case 0:
		return value.Sequence{}, nil
	case 1:
		return records[0], nil
	default:
		return records, nil
	}
}

// splitLine cuts at the first '=' or ':', whichever comes first
func splitLine(text string) (key, raw string, ok bool) {
	i := strings.IndexAny(text, "=:")
	if i <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+1:]), true
}

func lineScalar(raw string) (value.Scalar, error) {
	if len(raw) >= 2 {
		switch {
		case raw[0] == '"' && raw[len(raw)-1] == '"':
			s, err := strconv.Unquote(raw)
			if err != nil {
				return value.Scalar{}, err
			}
			return value.StringValue(s), nil
		case raw[0] == '\'' && raw[len(raw)-1] == '\'':
			return value.StringValue(raw[1 : len(raw)-1]), nil
		}
	}
	return value.Infer(raw), nil
}

// renest treats the keys of a top-level mapping, or of each mapping in a
// top-level sequence, as dotted paths.
func renest(v value.Value) value.Value {
	switch x := v.(type) {
	case *value.Mapping:
		return path.Nest(x)
	case value.Sequence:
		out := make(value.Sequence, len(x))
		for i, elem := range x {
			if m, ok := elem.(*value.Mapping); ok {
				out[i] = path.Nest(m)
			} else {
				out[i] = elem
			}
		}
		return out
	default:
		return v
	}
}
