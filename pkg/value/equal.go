package value

// Equal reports whether a and b are structurally identical. Mapping key
// order is significant, Number scalars compare by lexical form.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Scalar:
		bv, ok := b.(Scalar)
		return ok && av == bv
	case Sequence:
		bv, ok := b.(Sequence)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Mapping:
		bv, ok := b.(*Mapping)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		ak, bk := av.Keys(), bv.Keys()
		for i, k := range ak {
			if bk[i] != k {
				return false
			}
			x, _ := av.Get(k)
			y, _ := bv.Get(k)
			if !Equal(x, y) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// EqualRows reports whether two row sets hold the same rows, fields and
// scalars in the same order.
func EqualRows(a, b RowSet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		af, bf := a[i].Fields(), b[i].Fields()
		if len(af) != len(bf) {
			return false
		}
		for j, f := range af {
			if bf[j] != f {
				return false
			}
			x, _ := a[i].Get(f)
			y, _ := b[i].Get(f)
			if x != y {
				return false
			}
		}
	}
	return true
}
