package value

import "math"

// Key is the totally ordered projection of a Value, used as the key type
// of the index layer. Floats wrap into an ordered-float carrier so the
// key type itself is directly comparable with Less/Compare.
type Key struct {
	Tag Type
	I   int64
	F   OrderedFloat
	S   string
	B   bool
}

// OrderedFloat wraps a float64 together with its bit pattern. Key
// comparison of floats uses cmpFloat: every NaN equals every other NaN
// and sorts above all other floats, and +0 equals -0.
type OrderedFloat struct {
	bits uint64
	val  float64
}

func newOrderedFloat(f float64) OrderedFloat {
	return OrderedFloat{bits: math.Float64bits(f), val: f}
}

func (o OrderedFloat) Value() float64 { return o.val }

// KeyFrom derives an IndexKey from a Value. Distinct values of the same
// variant yield distinct keys, except for floats that cmpFloat treats as
// equal: any two NaNs yield equal keys, and so do +0 and -0.
func KeyFrom(v Value) Key {
	switch v.Tag {
	case TypeInt:
		return Key{Tag: TypeInt, I: v.I}
	case TypeFloat:
		return Key{Tag: TypeFloat, F: newOrderedFloat(v.F)}
	case TypeText:
		return Key{Tag: TypeText, S: v.S}
	case TypeBool:
		return Key{Tag: TypeBool, B: v.B}
	default:
		return Key{Tag: TypeNull}
	}
}

// Compare totally orders keys: first by variant tag (so cross-variant
// comparisons are still deterministic for composite-index tuple
// ordering), then within a variant by the same rule as value.Cmp.
func (k Key) Compare(o Key) Ordering {
	if k.Tag != o.Tag {
		return cmpInt64(int64(k.Tag), int64(o.Tag))
	}
	switch k.Tag {
	case TypeInt:
		return cmpInt64(k.I, o.I)
	case TypeFloat:
		return cmpFloat(k.F.val, o.F.val)
	case TypeText:
		return cmpString(k.S, o.S)
	case TypeBool:
		return cmpBool(k.B, o.B)
	default:
		return Equal
	}
}

func (k Key) Less(o Key) bool { return k.Compare(o) == Less }
func (k Key) Eq(o Key) bool   { return k.Compare(o) == Equal }

// CompositeKey is an ordered tuple of Keys compared lexicographically.
type CompositeKey []Key

func CompositeKeyFrom(values []Value) CompositeKey {
	ck := make(CompositeKey, len(values))
	for i, v := range values {
		ck[i] = KeyFrom(v)
	}
	return ck
}

// Compare orders two composite keys lexicographically. Shorter keys that
// are a strict prefix of a longer one sort before it.
func (c CompositeKey) Compare(o CompositeKey) Ordering {
	n := len(c)
	if len(o) < n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		if ord := c[i].Compare(o[i]); ord != Equal {
			return ord
		}
	}
	return cmpInt64(int64(len(c)), int64(len(o)))
}

func (c CompositeKey) Less(o CompositeKey) bool { return c.Compare(o) == Less }

// HasPrefix reports whether c's leading len(prefix) components all equal
// prefix's components.
func (c CompositeKey) HasPrefix(prefix CompositeKey) bool {
	if len(prefix) > len(c) {
		return false
	}
	for i := range prefix {
		if !c[i].Eq(prefix[i]) {
			return false
		}
	}
	return true
}
