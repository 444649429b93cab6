package value

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCmpSameVariant(t *testing.T) {
	assert.Equal(t, Less, Cmp(Int(1), Int(2)))
	assert.Equal(t, Greater, Cmp(Int(2), Int(1)))
	assert.Equal(t, Equal, Cmp(Int(7), Int(7)))

	assert.Equal(t, Less, Cmp(Text("a"), Text("b")))
	assert.Equal(t, Equal, Cmp(Text("x"), Text("x")))

	assert.Equal(t, Less, Cmp(Bool(false), Bool(true)))
	assert.Equal(t, Equal, Cmp(Bool(true), Bool(true)))

	assert.Equal(t, Equal, Cmp(Null(), Null()))
}

func TestCmpCrossVariantIsStabilityValue(t *testing.T) {
	// Cross-variant pairs compare Equal for sort stability but are never
	// equal under Equal().
	assert.Equal(t, Equal, Cmp(Int(1), Text("1")))
	assert.Equal(t, Equal, Cmp(Float(1.0), Int(1)))
	assert.False(t, ValuesEqual(Int(1), Text("1")))
	assert.False(t, ValuesEqual(Float(1.0), Int(1)))
	assert.True(t, ValuesEqual(Int(1), Int(1)))
}

func TestCmpFloatTotalOrder(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	assert.Equal(t, Equal, Cmp(Float(nan), Float(nan)))
	assert.Equal(t, Greater, Cmp(Float(nan), Float(inf)))
	assert.Equal(t, Greater, Cmp(Float(nan), Float(0.0)))
	assert.Equal(t, Less, Cmp(Float(inf), Float(nan)))
	assert.Equal(t, Less, Cmp(Float(-inf), Float(0.0)))
	assert.Equal(t, Equal, Cmp(Float(0.0), Float(math.Copysign(0, -1))))
}

func TestFloatSortIsDeterministic(t *testing.T) {
	vals := []Value{Float(math.NaN()), Float(1.5), Float(math.Inf(-1)), Float(0), Float(math.Inf(1))}
	sort.SliceStable(vals, func(i, j int) bool { return Cmp(vals[i], vals[j]) == Less })

	assert.True(t, math.IsInf(vals[0].F, -1))
	assert.Equal(t, 0.0, vals[1].F)
	assert.Equal(t, 1.5, vals[2].F)
	assert.True(t, math.IsInf(vals[3].F, 1))
	assert.True(t, math.IsNaN(vals[4].F))
}

func TestKeyFromIsInjectivePerVariant(t *testing.T) {
	assert.True(t, KeyFrom(Int(1)).Eq(KeyFrom(Int(1))))
	assert.False(t, KeyFrom(Int(1)).Eq(KeyFrom(Int(2))))
	assert.False(t, KeyFrom(Text("1")).Eq(KeyFrom(Int(1))))

	// NaN keys are equal to each other, greater than every non-NaN float.
	nanKey := KeyFrom(Float(math.NaN()))
	assert.True(t, nanKey.Eq(KeyFrom(Float(math.NaN()))))
	assert.Equal(t, Greater, nanKey.Compare(KeyFrom(Float(math.Inf(1)))))
}

func TestKeyOrderingWithinVariant(t *testing.T) {
	assert.True(t, KeyFrom(Int(1)).Less(KeyFrom(Int(2))))
	assert.True(t, KeyFrom(Text("abc")).Less(KeyFrom(Text("abd"))))
	assert.True(t, KeyFrom(Bool(false)).Less(KeyFrom(Bool(true))))
	assert.True(t, KeyFrom(Float(-1.0)).Less(KeyFrom(Float(1.0))))
}

func TestKeyCrossVariantOrderIsDeterministic(t *testing.T) {
	// Cross-variant keys order by tag so composite tuples stay totally
	// ordered.
	a := KeyFrom(Int(5))
	b := KeyFrom(Text("5"))
	require.NotEqual(t, Equal, a.Compare(b))
	assert.Equal(t, a.Compare(b), KeyFrom(Int(99)).Compare(KeyFrom(Text(""))))
}

func TestCompositeKeyLexicographic(t *testing.T) {
	ab := CompositeKeyFrom([]Value{Int(1), Int(2)})
	ac := CompositeKeyFrom([]Value{Int(1), Int(3)})
	b := CompositeKeyFrom([]Value{Int(2), Int(0)})

	assert.True(t, ab.Less(ac))
	assert.True(t, ac.Less(b))
	assert.Equal(t, Equal, ab.Compare(CompositeKeyFrom([]Value{Int(1), Int(2)})))
}

func TestCompositeKeyPrefixOrdering(t *testing.T) {
	short := CompositeKeyFrom([]Value{Int(1)})
	long := CompositeKeyFrom([]Value{Int(1), Int(2)})

	// A strict prefix sorts before the longer key.
	assert.True(t, short.Less(long))
	assert.True(t, long.HasPrefix(short))
	assert.False(t, short.HasPrefix(long))
	assert.True(t, long.HasPrefix(long))
}

func TestRowClone(t *testing.T) {
	r := Row{"a": Int(1), "b": Text("x")}
	c := r.Clone()
	c["a"] = Int(99)
	assert.Equal(t, int64(1), r["a"].I)
	assert.Equal(t, int64(99), c["a"].I)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "42", Int(42).String())
	assert.Equal(t, "1.5", Float(1.5).String())
	assert.Equal(t, "hi", Text("hi").String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "NULL", Null().String())
}
