// Package bloomset implements MirseoDB's per-column Bloom filter layer:
// a set of Bloom filters built from a table's current rows, used by the
// scanner to skip predicates whose probe value cannot possibly be
// present.
//
// Sizing uses the standard minima: m = ceil(-n*ln(p)/(ln 2)^2) and
// k = ceil((m/n)*ln 2), with p=0.01 default and n=max(row_count, 1000).
// The bitset and saturation bookkeeping are delegated to
// github.com/holiman/bloomfilter/v2; MirseoDB supplies the m/k sizing
// and the per-iteration seeded xxhash.
package bloomset

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	bloomfilter "github.com/holiman/bloomfilter/v2"

	"github.com/MirseoDB/mirseodb/internal/value"
)

const (
	DefaultFalsePositiveRate = 0.01
	minExpectedElements      = 1000
)

// OptimalSize returns the minimal bit count m for n expected elements at
// false-positive rate p.
func OptimalSize(n uint64, p float64) uint64 {
	m := -(float64(n) * math.Log(p)) / (math.Ln2 * math.Ln2)
	return uint64(math.Ceil(m))
}

// OptimalHashCount returns the minimal hash-function count k for a filter
// of m bits holding n expected elements.
func OptimalHashCount(m, n uint64) uint64 {
	k := (float64(m) / float64(n)) * math.Ln2
	return uint64(math.Ceil(k))
}

// Filter wraps a single column's Bloom filter.
type Filter struct {
	bf           *bloomfilter.Filter
	k            uint64
	elementCount uint64
}

// NewFilter builds a filter sized for expectedElements at falsePositiveRate.
func NewFilter(expectedElements uint64, falsePositiveRate float64) *Filter {
	if expectedElements < minExpectedElements {
		expectedElements = minExpectedElements
	}
	m := OptimalSize(expectedElements, falsePositiveRate)
	if m == 0 {
		m = 1
	}
	k := OptimalHashCount(m, expectedElements)
	if k == 0 {
		k = 1
	}
	bf, _ := bloomfilter.New(m, k)
	return &Filter{bf: bf, k: k}
}

// Insert adds v to the filter.
func (f *Filter) Insert(v value.Value) {
	for i := uint64(0); i < f.k; i++ {
		f.bf.AddHash(seededHash(v, i))
	}
	f.elementCount++
}

// Contains reports whether v might be present (false positives possible,
// false negatives never).
func (f *Filter) Contains(v value.Value) bool {
	for i := uint64(0); i < f.k; i++ {
		if !f.bf.ContainsHash(seededHash(v, i)) {
			return false
		}
	}
	return true
}

// FalsePositiveProbability estimates the filter's current FP rate given
// how many elements have actually been inserted.
func (f *Filter) FalsePositiveProbability() float64 {
	k := float64(f.k)
	m := float64(f.bf.M())
	n := float64(f.elementCount)
	if m == 0 {
		return 1
	}
	return math.Pow(1-math.Exp(-k*n/m), k)
}

func (f *Filter) ElementCount() uint64 { return f.elementCount }

// seededHash hashes v with xxhash, mixing in seed so each of the k
// iterations probes a distinct bit position.
func seededHash(v value.Value, seed uint64) uint64 {
	var buf [9]byte
	binary.LittleEndian.PutUint64(buf[:8], seed)
	h := xxhash.New()
	h.Write(buf[:8])
	switch v.Tag {
	case value.TypeInt:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.I))
		buf[8] = 0
		h.Write(buf[8:9])
		h.Write(b[:])
	case value.TypeFloat:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F))
		buf[8] = 1
		h.Write(buf[8:9])
		h.Write(b[:])
	case value.TypeText:
		buf[8] = 2
		h.Write(buf[8:9])
		h.Write([]byte(v.S))
	case value.TypeBool:
		buf[8] = 3
		h.Write(buf[8:9])
		if v.B {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	default:
		buf[8] = 4
		h.Write(buf[8:9])
	}
	return h.Sum64()
}
