package value

// ordered is an insertion-ordered string-keyed map shared by Mapping and Row.
type ordered[V any] struct {
	keys  []string
	index map[string]V
}

func (o *ordered[V]) set(key string, v V) {
	if o.index == nil {
		o.index = make(map[string]V)
	}
	if _, exists := o.index[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.index[key] = v
}

func (o *ordered[V]) get(key string) (V, bool) {
	v, ok := o.index[key]
	return v, ok
}

func (o *ordered[V]) keyList() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

func (o *ordered[V]) each(fn func(string, V) bool) {
	for _, k := range o.keys {
		if !fn(k, o.index[k]) {
			return
		}
	}
}
