package hierarchical

import (
	"bytes"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/pool"
	"github.com/ajitpratap0/nebula-convert/pkg/value"
)

const indent = "    "

// Encode writes rows as a JSON array with one flat object per row. Field
// names are written literally, dotted paths included.
func Encode(rows value.RowSet) ([]byte, error) {
	if len(rows) == 0 {
		return []byte("[]\n"), nil
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	buf.WriteString("[\n")
	for i, row := range rows {
		buf.WriteString(indent)
		if row.Len() == 0 {
			buf.WriteString("{}")
		} else {
			buf.WriteString("{\n")
			n := 0
			var encErr error
			row.Each(func(field string, s value.Scalar) bool {
				if n > 0 {
					buf.WriteString(",\n")
				}
				n++
				buf.WriteString(indent + indent)
				if encErr = writeString(buf, field); encErr != nil {
					return false
				}
				buf.WriteString(": ")
				encErr = writeScalar(buf, s)
				return encErr == nil
			})
			if encErr != nil {
				return nil, errors.Wrap(encErr, errors.ErrorTypeEncoding, "failed to encode row").
					WithDetail("row", i)
			}
			buf.WriteString("\n" + indent + "}")
		}
		if i < len(rows)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	return pool.Bytes(buf), nil
}

func writeScalar(buf *bytes.Buffer, s value.Scalar) error {
	switch s.Type() {
	case value.Null:
		buf.WriteString("null")
	case value.Number, value.Bool:
		buf.WriteString(s.Text())
	default:
		return writeString(buf, s.Text())
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := gojson.MarshalNoEscape(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
