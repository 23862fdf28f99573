// Package convert dispatches a decoded source to the two other encodings.
//
// Every source encoding converts into exactly the two encodings other than
// its own:
//
//	tabular      -> converted_file.json, converted_file.yml
//	hierarchical -> converted_file.csv,  converted_file.yml
//	tree         -> converted_file.csv,  converted_file.json
//
// Sources of any other encoding are ignored: Convert returns an empty
// Result and no error.
package convert

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-convert/pkg/bridge"
	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/formats/hierarchical"
	"github.com/ajitpratap0/nebula-convert/pkg/formats/tabular"
	"github.com/ajitpratap0/nebula-convert/pkg/formats/tree"
	"github.com/ajitpratap0/nebula-convert/pkg/value"
)

// Option configures a Converter
type Option func(*Converter)

// WithTabularOptions sets the CSV dialect used to read and write tabular data
func WithTabularOptions(opts tabular.Options) Option {
	return func(c *Converter) {
		c.tabular = tabular.NewCodec(opts)
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// Converter holds the codec settings for a conversion. It keeps no state
// between calls and is safe for concurrent use.
type Converter struct {
	tabular *tabular.Codec
	logger  *zap.Logger
}

// NewConverter creates a Converter
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		tabular: tabular.NewCodec(tabular.DefaultOptions()),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultConverter = NewConverter()

// Convert converts data with the default Converter
func Convert(src Encoding, data []byte) (*Result, error) {
	return defaultConverter.Convert(src, data)
}

// decoded holds what a decoded source offers to the target encoders: the
// flat rows and the nested value.
type decoded struct {
	rows value.RowSet
	tree value.Sequence
}

// Convert decodes data as src and encodes it into src's targets. A decode
// failure returns an empty Result with the error. A failure encoding one
// target does not prevent the other; the Result then holds the successful
// artifact and the errors are joined.
func (c *Converter) Convert(src Encoding, data []byte) (*Result, error) {
	result := NewResult()
	log := c.logger.With(zap.String("source", src.String()), zap.Int("bytes", len(data)))

	if src == Unknown {
		log.Debug("unsupported source encoding, nothing to convert")
		return result, nil
	}

	d, err := c.decode(src, data)
	if err != nil {
		log.Warn("failed to decode source", zap.Error(err))
		return result, err
	}

	var errs []error
	for _, target := range src.Targets() {
		out, err := c.encode(target, d)
		if err != nil {
			log.Warn("failed to encode target",
				zap.String("target", target.String()),
				zap.Error(err))
			errs = append(errs, errors.Wrap(err, errors.ErrorTypeEncoding, "failed to produce "+target.ArtifactName()))
			continue
		}
		result.Add(target.ArtifactName(), out)
		log.Debug("artifact encoded",
			zap.String("artifact", target.ArtifactName()),
			zap.Int("size", len(out)))
	}

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}
	return result, nil
}

func (c *Converter) decode(src Encoding, data []byte) (*decoded, error) {
	switch src {
	case Tabular:
		rows, err := c.tabular.Decode(data)
		if err != nil {
			return nil, err
		}
		// Rows become tree elements with their field names kept literally.
		return &decoded{rows: rows, tree: rows.Sequence()}, nil

	case Hierarchical:
		v, err := hierarchical.Decode(data)
		if err != nil {
			return nil, err
		}
		return fromValue(v)

	case Tree:
		v, err := tree.Decode(data)
		if err != nil {
			return nil, err
		}
		return fromValue(v)

	default:
		return nil, errors.Newf(errors.ErrorTypeUnsupportedSource, "no decoder for %s", src)
	}
}

func fromValue(v value.Value) (*decoded, error) {
	wrapped := bridge.Wrap(v)
	rows, err := bridge.TreeToRows(wrapped)
	if err != nil {
		return nil, err
	}
	return &decoded{rows: rows, tree: wrapped}, nil
}

func (c *Converter) encode(target Encoding, d *decoded) ([]byte, error) {
	switch target {
	case Tabular:
		return c.tabular.Encode(d.rows)
	case Hierarchical:
		return hierarchical.Encode(d.rows)
	case Tree:
		return tree.Encode(d.tree)
	default:
		return nil, errors.Newf(errors.ErrorTypeUnsupportedSource, "no encoder for %s", target)
	}
}
