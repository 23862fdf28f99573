package tree

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/path"
	"github.com/ajitpratap0/nebula-convert/pkg/pool"
	"github.com/ajitpratap0/nebula-convert/pkg/value"
)

// Indent is the prefix of every field line
const Indent = "    "

// Encode writes a sequence of mappings. Containers nested inside an
// element are written as flattened dotted keys. A null is written as an
// empty value, and strings that would read back as another kind are
// double-quoted.
func Encode(v value.Value) ([]byte, error) {
	seq, ok := v.(value.Sequence)
	if !ok {
		return nil, errors.Encoding(ReasonUnsupportedShape).WithDetail("kind", kindOf(v))
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	for i, elem := range seq {
		m, ok := elem.(*value.Mapping)
		if !ok {
			return nil, errors.Encoding(ReasonUnsupportedShape).
				WithDetail("element", i).
				WithDetail("kind", kindOf(elem))
		}

		if m.Len() == 0 {
			buf.WriteString("- {}\n")
			continue
		}

		// Distinct children can flatten to the same key ("b.c" next to
		// b: {c: ...}). The row keeps one line per key, last write wins.
		row := value.NewRow()
		for _, e := range path.Flatten(m) {
			row.Set(e.Path, e.Scalar)
		}

		buf.WriteString("-\n")
		row.Each(func(field string, s value.Scalar) bool {
			buf.WriteString(Indent)
			buf.WriteString(renderKey(field))
			buf.WriteByte(':')
			if text := renderScalar(s); text != "" {
				buf.WriteByte(' ')
				buf.WriteString(text)
			}
			buf.WriteByte('\n')
			return true
		})
	}
	return pool.Bytes(buf), nil
}

func kindOf(v value.Value) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String()
}

func renderKey(k string) string {
	if k == "" || k == "<<" || needsQuotes(k) {
		return strconv.Quote(k)
	}
	return k
}

func renderScalar(s value.Scalar) string {
	switch s.Type() {
	case value.Null:
		return ""
	case value.String:
		if s.Ambiguous() || needsQuotes(s.Text()) || isNullWord(s.Text()) {
			return strconv.Quote(s.Text())
		}
		return s.Text()
	default:
		return s.Text()
	}
}

func isNullWord(s string) bool {
	switch s {
	case "~", "null", "Null", "NULL":
		return true
	}
	return false
}

// needsQuotes reports whether a plain scalar would be misread: leading
// indicators, key/comment separators, surrounding blanks or control bytes.
func needsQuotes(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsRune("-?:,[]{}#&*!|>'\"%@`", rune(s[0])) {
		return true
	}
	if s[0] == ' ' || s[len(s)-1] == ' ' || s[len(s)-1] == ':' {
		return true
	}
	if strings.Contains(s, ": ") || strings.Contains(s, " #") {
		return true
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
