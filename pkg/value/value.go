// Package value defines the in-memory shape shared by every codec in
// nebula-convert.
//
// A Value is one of three concrete kinds:
//   - Scalar: a string, number, bool or null leaf
//   - Sequence: an ordered list of Values
//   - *Mapping: an ordered map from string keys to Values
//
// Tabular data uses Row (an ordered field -> Scalar record) and RowSet.
// Values produced by a decoder are treated as immutable; transformations
// build new Values instead of editing the ones they were given.
package value

// Kind identifies the concrete type behind a Value.
type Kind int

const (
	// KindScalar is a leaf value
	KindScalar Kind = iota
	// KindSequence is an ordered list
	KindSequence
	// KindMapping is an ordered key/value map
	KindMapping
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is the recursive sum type of the tree model. The set of
// implementations is closed: Scalar, Sequence and *Mapping.
type Value interface {
	// Kind reports which concrete type the value is.
	Kind() Kind
	isValue()
}

// Sequence is an ordered list of values.
type Sequence []Value

// Kind implements Value
func (Sequence) Kind() Kind { return KindSequence }

func (Sequence) isValue() {}

// Len returns the number of elements
func (s Sequence) Len() int { return len(s) }

// Mapping is an ordered map with unique string keys. Setting an existing
// key replaces its value in place and keeps the key's original position.
// The zero value is ready to use.
type Mapping struct {
	fields ordered[Value]
}

// NewMapping creates an empty mapping
func NewMapping() *Mapping {
	return &Mapping{}
}

// Kind implements Value
func (*Mapping) Kind() Kind { return KindMapping }

func (*Mapping) isValue() {}

// Set stores v under key and returns the mapping for chaining.
func (m *Mapping) Set(key string, v Value) *Mapping {
	m.fields.set(key, v)
	return m
}

// Get returns the value stored under key
func (m *Mapping) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	return m.fields.get(key)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	return m.fields.keyList()
}

// Len returns the number of keys
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.fields.keys)
}

// Each calls fn for every entry in insertion order. Iteration stops when fn
// returns false.
func (m *Mapping) Each(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	m.fields.each(fn)
}

// Row is a single tabular record: ordered field names mapped to scalars.
// The zero value is ready to use.
type Row struct {
	fields ordered[Scalar]
}

// NewRow creates an empty row
func NewRow() *Row {
	return &Row{}
}

// Set stores s under field and returns the row for chaining.
func (r *Row) Set(field string, s Scalar) *Row {
	r.fields.set(field, s)
	return r
}

// Get returns the scalar stored under field
func (r *Row) Get(field string) (Scalar, bool) {
	if r == nil {
		return Scalar{}, false
	}
	return r.fields.get(field)
}

// Fields returns the field names in order. The slice is a copy.
func (r *Row) Fields() []string {
	if r == nil {
		return nil
	}
	return r.fields.keyList()
}

// Len returns the number of fields
func (r *Row) Len() int {
	if r == nil {
		return 0
	}
	return len(r.fields.keys)
}

// Each calls fn for every field in order. Iteration stops when fn returns
// false.
func (r *Row) Each(fn func(field string, s Scalar) bool) {
	if r == nil {
		return
	}
	r.fields.each(fn)
}

// Mapping returns a Mapping holding the row's fields in the same order.
// Field names are copied literally; dotted names are not re-nested.
func (r *Row) Mapping() *Mapping {
	m := NewMapping()
	r.Each(func(field string, s Scalar) bool {
		m.Set(field, s)
		return true
	})
	return m
}

// RowSet is an ordered sequence of rows. Order is significant.
type RowSet []*Row

// Sequence returns the rows as a Sequence of flat Mappings.
func (rs RowSet) Sequence() Sequence {
	seq := make(Sequence, len(rs))
	for i, r := range rs {
		seq[i] = r.Mapping()
	}
	return seq
}
