// Package bridge converts between the row shape of tabular data and the
// nested shape of tree data.
//
// TreeToRows flattens every element of a sequence into one row keyed by
// dotted paths; RowsToTree reverses it by assigning each field at its path
// in a fresh mapping. For values without path collisions
//
//	RowsToTree(TreeToRows(Wrap(v))) == Wrap(v)
package bridge

import (
	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/path"
	"github.com/ajitpratap0/nebula-convert/pkg/value"
)

// ScalarField names the single field of a row built from a bare scalar
// sequence element.
const ScalarField = "value"

// ReasonUnsupportedShape is reported when TreeToRows is not given a sequence
const ReasonUnsupportedShape = "unsupported tree shape"

// Wrap returns v unchanged if it is a Sequence and a one-element Sequence
// holding v otherwise.
func Wrap(v value.Value) value.Sequence {
	if seq, ok := v.(value.Sequence); ok {
		return seq
	}
	return value.Sequence{v}
}

// TreeToRows builds one row per element of v, in element order
func TreeToRows(v value.Value) (value.RowSet, error) {
	seq, ok := v.(value.Sequence)
	if !ok {
		kind := "nil"
		if v != nil {
			kind = v.Kind().String()
		}
		return nil, errors.Encoding(ReasonUnsupportedShape).WithDetail("kind", kind)
	}

	rows := make(value.RowSet, 0, len(seq))
	for _, elem := range seq {
		rows = append(rows, elementRow(elem))
	}
	return rows, nil
}

func elementRow(elem value.Value) *value.Row {
	row := value.NewRow()
	if s, ok := elem.(value.Scalar); ok {
		return row.Set(ScalarField, s)
	}
	for _, e := range path.Flatten(elem) {
		row.Set(e.Path, e.Scalar)
	}
	return row
}

// RowsToTree builds one mapping per row by assigning every field at its
// dotted path. Colliding paths resolve by last write wins.
func RowsToTree(rows value.RowSet) value.Sequence {
	seq := make(value.Sequence, 0, len(rows))
	for _, row := range rows {
		m := value.NewMapping()
		row.Each(func(field string, s value.Scalar) bool {
			path.Assign(m, field, s)
			return true
		})
		seq = append(seq, path.Compact(m))
	}
	return seq
}
