package convert

// Result maps artifact names to their encoded bytes, in the order they
// were produced.
type Result struct {
	names []string
	data  map[string][]byte
}

// NewResult returns an empty Result
func NewResult() *Result {
	return &Result{data: make(map[string][]byte)}
}

// Add stores an artifact, replacing any previous one with the same name
func (r *Result) Add(name string, data []byte) {
	if _, exists := r.data[name]; !exists {
		r.names = append(r.names, name)
	}
	r.data[name] = data
}

// Get returns the bytes of name
func (r *Result) Get(name string) ([]byte, bool) {
	if r == nil {
		return nil, false
	}
	b, ok := r.data[name]
	return b, ok
}

// Names returns the artifact names in production order
func (r *Result) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of artifacts
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Size returns the total number of bytes across all artifacts
func (r *Result) Size() int {
	total := 0
	r.Each(func(_ string, data []byte) bool {
		total += len(data)
		return true
	})
	return total
}

// Each calls fn for every artifact in order until fn returns false
func (r *Result) Each(fn func(name string, data []byte) bool) {
	if r == nil {
		return
	}
	for _, name := range r.names {
		if !fn(name, r.data[name]) {
			return
		}
	}
}
