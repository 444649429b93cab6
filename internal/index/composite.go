package index

import (
	"sort"

	"github.com/MirseoDB/mirseodb/internal/value"
)

type compositeBucket struct {
	key    value.CompositeKey
	rowIDs []RowID
}

// CompositeIndex maps an ordered tuple of value.Key to []RowID, compared
// lexicographically, supporting exact, left-prefix, and inclusive-range
// probes over the composite order.
type CompositeIndex struct {
	Name    string
	Columns []string // column order defines the tuple order
	buckets []compositeBucket
}

func NewCompositeIndex(name string, columns []string) *CompositeIndex {
	return &CompositeIndex{Name: name, Columns: append([]string(nil), columns...)}
}

func (idx *CompositeIndex) search(k value.CompositeKey) (int, bool) {
	i := sort.Search(len(idx.buckets), func(i int) bool {
		return idx.buckets[i].key.Compare(k) != value.Less
	})
	if i < len(idx.buckets) && idx.buckets[i].key.Compare(k) == value.Equal {
		return i, true
	}
	return i, false
}

// Insert adds rowID under the composite key formed from values, in
// Columns order. Composite indexes are never unique in this design.
func (idx *CompositeIndex) Insert(values []value.Value, rowID RowID) {
	k := value.CompositeKeyFrom(values)
	pos, found := idx.search(k)
	if found {
		idx.buckets[pos].rowIDs = append(idx.buckets[pos].rowIDs, rowID)
		return
	}
	nb := compositeBucket{key: k, rowIDs: []RowID{rowID}}
	idx.buckets = append(idx.buckets, compositeBucket{})
	copy(idx.buckets[pos+1:], idx.buckets[pos:])
	idx.buckets[pos] = nb
}

// Remove deletes rowID from values' composite bucket.
func (idx *CompositeIndex) Remove(values []value.Value, rowID RowID) {
	k := value.CompositeKeyFrom(values)
	pos, found := idx.search(k)
	if !found {
		return
	}
	ids := idx.buckets[pos].rowIDs
	for i, id := range ids {
		if id == rowID {
			idx.buckets[pos].rowIDs = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(idx.buckets[pos].rowIDs) == 0 {
		idx.buckets = append(idx.buckets[:pos], idx.buckets[pos+1:]...)
	}
}

// FindExact returns the bucket for an exact composite key match.
func (idx *CompositeIndex) FindExact(values []value.Value) []RowID {
	k := value.CompositeKeyFrom(values)
	pos, found := idx.search(k)
	if !found {
		return nil
	}
	return append([]RowID(nil), idx.buckets[pos].rowIDs...)
}

// FindPrefix returns every row-id whose key's leading len(values)
// components match values (a left-prefix probe).
func (idx *CompositeIndex) FindPrefix(values []value.Value) []RowID {
	prefix := value.CompositeKeyFrom(values)
	lo := sort.Search(len(idx.buckets), func(i int) bool {
		return !prefixLess(idx.buckets[i].key, prefix)
	})
	var out []RowID
	for i := lo; i < len(idx.buckets) && idx.buckets[i].key.HasPrefix(prefix); i++ {
		out = append(out, idx.buckets[i].rowIDs...)
	}
	return out
}

// prefixLess reports whether key sorts strictly before any key sharing
// the given prefix (used to binary-search the first candidate).
func prefixLess(key, prefix value.CompositeKey) bool {
	n := len(prefix)
	if len(key) < n {
		return key.Compare(prefix) == value.Less
	}
	return key[:n].Compare(prefix) == value.Less
}

// FindRangeComposite returns every row-id whose composite key falls in
// [start, end] inclusive, either bound open if nil.
func (idx *CompositeIndex) FindRangeComposite(start, end []value.Value) []RowID {
	lo := 0
	if start != nil {
		sk := value.CompositeKeyFrom(start)
		lo = sort.Search(len(idx.buckets), func(i int) bool {
			return idx.buckets[i].key.Compare(sk) != value.Less
		})
	}
	hi := len(idx.buckets)
	if end != nil {
		ek := value.CompositeKeyFrom(end)
		hi = sort.Search(len(idx.buckets), func(i int) bool {
			return idx.buckets[i].key.Compare(ek) == value.Greater
		})
	}
	var out []RowID
	for i := lo; i < hi; i++ {
		out = append(out, idx.buckets[i].rowIDs...)
	}
	return out
}

// Clear empties the index.
func (idx *CompositeIndex) Clear() { idx.buckets = nil }

// LeadingColumn returns the first column in the composite order, used by
// the planner to decide whether a predicate can match this index at all.
func (idx *CompositeIndex) LeadingColumn() string {
	if len(idx.Columns) == 0 {
		return ""
	}
	return idx.Columns[0]
}
