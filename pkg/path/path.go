// Package path converts between nested Values and flat dotted paths.
//
// Flatten walks a Value and yields one Entry per scalar leaf, with mapping
// keys and sequence indexes joined by ".". Assign goes the other way: it
// writes a scalar at a dotted path inside a Mapping, creating intermediate
// mappings as it goes. Conflicts are resolved by last write wins: if a
// segment already holds a scalar it is replaced by a fresh mapping.
//
//	m := value.NewMapping()
//	path.Assign(m, "user.name", value.StringValue("Ada"))
//	path.Assign(m, "user.age", value.IntValue(36))
//	// m is {user: {name: Ada, age: 36}}
package path

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/nebula-convert/pkg/value"
)

// Separator joins path segments
const Separator = "."

// Entry is one flattened leaf
type Entry struct {
	Path   string
	Scalar value.Scalar
}

// Split breaks a dotted path into its segments
func Split(p string) []string {
	return strings.Split(p, Separator)
}

// Join builds a dotted path from segments, skipping empty ones
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, Separator)
}

// Flatten returns the scalar leaves of v depth-first, in mapping insertion
// order and natural sequence order. A bare scalar yields a single entry
// with an empty path. Empty containers yield nothing.
func Flatten(v value.Value) []Entry {
	var out []Entry
	flatten(v, "", &out)
	return out
}

func flatten(v value.Value, prefix string, out *[]Entry) {
	switch x := v.(type) {
	case value.Scalar:
		*out = append(*out, Entry{Path: prefix, Scalar: x})
	case value.Sequence:
		for i, elem := range x {
			flatten(elem, extend(prefix, strconv.Itoa(i)), out)
		}
	case *value.Mapping:
		x.Each(func(key string, child value.Value) bool {
			flatten(child, extend(prefix, key), out)
			return true
		})
	}
}

func extend(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + Separator + segment
}

// Assign stores s at the dotted path p inside root. Missing intermediate
// segments become new mappings; an intermediate segment holding anything
// other than a mapping is overwritten with a fresh one.
func Assign(root *value.Mapping, p string, s value.Scalar) {
	AssignValue(root, p, s)
}

// AssignValue is Assign for an arbitrary value. Containers are stored as
// they are; their own keys are not split.
func AssignValue(root *value.Mapping, p string, v value.Value) {
	assign(root, p, v, nil)
}

func assign(root *value.Mapping, p string, v value.Value, created map[*value.Mapping]bool) {
	segments := Split(p)
	current := root
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current.Get(seg)
		child, isMapping := next.(*value.Mapping)
		if !ok || !isMapping {
			child = value.NewMapping()
			current.Set(seg, child)
			if created != nil {
				created[child] = true
			}
		}
		current = child
	}
	current.Set(segments[len(segments)-1], v)
}

// Nest expands the dotted keys of m into nested mappings. Only mappings
// created for intermediate segments are compacted into sequences; values
// taken from m keep their shape, so {"scores": {"0": "a"}} stays a mapping
// while "tags.0" becomes a sequence.
func Nest(m *value.Mapping) *value.Mapping {
	root := value.NewMapping()
	created := make(map[*value.Mapping]bool)
	m.Each(func(key string, child value.Value) bool {
		assign(root, key, child, created)
		return true
	})
	compactCreated(root, created)
	return root
}

// compactCreated rewrites, in place, every created indexed mapping below m
// into a sequence and returns the replacement for m itself.
func compactCreated(m *value.Mapping, created map[*value.Mapping]bool) value.Value {
	for _, key := range m.Keys() {
		child, _ := m.Get(key)
		if cm, ok := child.(*value.Mapping); ok {
			m.Set(key, compactCreated(cm, created))
		}
	}
	if !created[m] || !isIndexed(m) {
		return m
	}
	out := make(value.Sequence, 0, m.Len())
	m.Each(func(_ string, child value.Value) bool {
		out = append(out, child)
		return true
	})
	return out
}

// Unflatten rebuilds a nested value from flattened entries. It is Assign
// applied to every entry followed by Compact.
func Unflatten(entries []Entry) value.Value {
	root := value.NewMapping()
	for _, e := range entries {
		Assign(root, e.Path, e.Scalar)
	}
	return Compact(root)
}

// Compact returns a copy of v in which every mapping whose keys are exactly
// "0", "1", ... "n-1" in that order is turned into a sequence. Assign can
// only create mappings, so this restores the sequences Flatten took apart.
func Compact(v value.Value) value.Value {
	switch x := v.(type) {
	case value.Sequence:
		out := make(value.Sequence, len(x))
		for i, elem := range x {
			out[i] = Compact(elem)
		}
		return out
	case *value.Mapping:
		if isIndexed(x) {
			out := make(value.Sequence, 0, x.Len())
			x.Each(func(_ string, child value.Value) bool {
				out = append(out, Compact(child))
				return true
			})
			return out
		}
		out := value.NewMapping()
		x.Each(func(key string, child value.Value) bool {
			out.Set(key, Compact(child))
			return true
		})
		return out
	default:
		return v
	}
}

func isIndexed(m *value.Mapping) bool {
	if m.Len() == 0 {
		return false
	}
	for i, k := range m.Keys() {
		if k != strconv.Itoa(i) {
			return false
		}
	}
	return true
}
