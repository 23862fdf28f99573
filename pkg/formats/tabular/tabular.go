// Package tabular implements the CSV codec: delimited records whose first
// row names the fields.
//
// Decoding zips every record positionally against the header. A record
// shorter than the header leaves its trailing fields absent; a longer one
// has its extra values dropped. Field values are typed with value.Infer.
// Encoding takes the header from the first row and writes a blank field
// wherever a later row lacks one of the header's fields.
package tabular

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"io"

	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/pool"
	"github.com/ajitpratap0/nebula-convert/pkg/value"
)

const (
	// ReasonUnterminatedQuote is reported when a quoted field never closes
	ReasonUnterminatedQuote = "unterminated quoted field"
	// ReasonBareQuote is reported for a quote inside an unquoted field
	ReasonBareQuote = "bare quote in non-quoted field"
	// ReasonExtraneousQuote is reported for text after a closing quote
	ReasonExtraneousQuote = "extraneous quote in quoted field"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options configures the codec dialect
type Options struct {
	// Comma is the field delimiter
	Comma rune `yaml:"comma" json:"comma"`
	// CRLF terminates encoded lines with \r\n instead of \n
	CRLF bool `yaml:"crlf" json:"crlf"`
}

// DefaultOptions returns the standard comma-separated, LF-terminated dialect
func DefaultOptions() Options {
	return Options{Comma: ','}
}

// Codec decodes and encodes tabular text with a fixed dialect
type Codec struct {
	opts Options
}

// NewCodec creates a codec. A zero Comma falls back to ','.
func NewCodec(opts Options) *Codec {
	if opts.Comma == 0 {
		opts.Comma = ','
	}
	return &Codec{opts: opts}
}

var defaultCodec = NewCodec(DefaultOptions())

// Decode parses data with the default dialect
func Decode(data []byte) (value.RowSet, error) {
	return defaultCodec.Decode(data)
}

// Encode serializes rows with the default dialect
func Encode(rows value.RowSet) ([]byte, error) {
	return defaultCodec.Encode(rows)
}

// Decode parses data into rows. Empty input yields no rows.
func (c *Codec) Decode(data []byte) (value.RowSet, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = c.opts.Comma
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return value.RowSet{}, nil
	}
	if err != nil {
		return nil, decodeError(data, err)
	}

	rows := value.RowSet{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, decodeError(data, err)
		}

		row := value.NewRow()
		for i, field := range header {
			if i >= len(record) {
				break
			}
			row.Set(field, value.Infer(record[i]))
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Encode writes the header (the first row's fields) followed by one line
// per row in header order. An empty row set encodes to an empty header.
func (c *Codec) Encode(rows value.RowSet) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	w := csv.NewWriter(buf)
	w.Comma = c.opts.Comma
	w.UseCRLF = c.opts.CRLF

	var header []string
	if len(rows) > 0 {
		header = rows[0].Fields()
	}
	if len(header) > 0 {
		if err := c.writeRecord(w, buf, header); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "failed to write header")
		}
	}

	record := make([]string, len(header))
	for i, row := range rows {
		for j, field := range header {
			s, _ := row.Get(field)
			record[j] = s.Text()
		}
		if err := c.writeRecord(w, buf, record); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "failed to write row").
				WithDetail("row", i)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "failed to flush rows")
	}
	return pool.Bytes(buf), nil
}

// writeRecord writes one record. csv.Writer renders a lone empty field as
// a blank line, which readers skip, so that case is written as "" instead.
func (c *Codec) writeRecord(w *csv.Writer, buf *bytes.Buffer, record []string) error {
	if len(record) != 1 || record[0] != "" {
		return w.Write(record)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	buf.WriteString(`""`)
	if c.opts.CRLF {
		buf.WriteString("\r\n")
	} else {
		buf.WriteByte('\n')
	}
	return nil
}

func decodeError(data []byte, err error) error {
	var parseErr *csv.ParseError
	if !stderrors.As(err, &parseErr) {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to read tabular input")
	}

	reason := parseErr.Err.Error()
	switch {
	case stderrors.Is(parseErr.Err, csv.ErrQuote) && pastEnd(data, parseErr):
		reason = ReasonUnterminatedQuote
	case stderrors.Is(parseErr.Err, csv.ErrQuote):
		reason = ReasonExtraneousQuote
	case stderrors.Is(parseErr.Err, csv.ErrBareQuote):
		reason = ReasonBareQuote
	}
	return errors.Encoding(reason).
		WithDetail("line", parseErr.StartLine).
		WithDetail("column", parseErr.Column)
}

// pastEnd reports whether the reader ran out of input while inside a
// quoted field. A quote error raised within a line points at the
// offending quote, one raised at EOF points past the end of the last line.
func pastEnd(data []byte, parseErr *csv.ParseError) bool {
	lines := bytes.Split(data, []byte("\n"))
	if parseErr.Line < 1 {
		return false
	}
	if parseErr.Line > len(lines) {
		return true
	}
	line := bytes.TrimSuffix(lines[parseErr.Line-1], []byte("\r"))
	return parseErr.Column > len(line)
}
