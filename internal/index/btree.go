// Package index implements MirseoDB's single-column B-tree index and
// composite index, plus the per-table Manager that orchestrates them
// according to the auto-indexing rules.
//
// Go has no ordered-map container in its standard library, so both index
// kinds are a sorted slice of (key, []rowID) buckets maintained with
// sort.Search.
package index

import (
	"sort"

	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/value"
)

// RowID identifies a row within its table for the table's lifetime.
type RowID = uint64

type bucket struct {
	key    value.Key
	rowIDs []RowID
}

// BTreeIndex maps value.Key -> []RowID, ordered by key, with optional
// uniqueness and primary-key flags.
type BTreeIndex struct {
	Name       string
	ColumnName string
	IsUnique   bool
	IsPrimary  bool
	buckets    []bucket
}

// NewBTreeIndex creates an empty index.
func NewBTreeIndex(name, column string, unique, primary bool) *BTreeIndex {
	return &BTreeIndex{Name: name, ColumnName: column, IsUnique: unique, IsPrimary: primary}
}

func (idx *BTreeIndex) search(k value.Key) (int, bool) {
	i := sort.Search(len(idx.buckets), func(i int) bool {
		return idx.buckets[i].key.Compare(k) != value.Less
	})
	if i < len(idx.buckets) && idx.buckets[i].key.Eq(k) {
		return i, true
	}
	return i, false
}

// Insert appends rowID to v's bucket. Returns UniqueConstraintViolation if
// the index is unique and the bucket is already non-empty.
func (idx *BTreeIndex) Insert(v value.Value, rowID RowID) error {
	k := value.KeyFrom(v)
	pos, found := idx.search(k)
	if found {
		if idx.IsUnique && len(idx.buckets[pos].rowIDs) > 0 {
			if idx.IsPrimary {
				return dberr.New(dberr.PrimaryKeyViolation, "duplicate primary key value for %q: %s", idx.ColumnName, v.String())
			}
			return dberr.New(dberr.UniqueConstraintViolation, "duplicate value for unique index %q: %s", idx.Name, v.String())
		}
		idx.buckets[pos].rowIDs = append(idx.buckets[pos].rowIDs, rowID)
		return nil
	}
	nb := bucket{key: k, rowIDs: []RowID{rowID}}
	idx.buckets = append(idx.buckets, bucket{})
	copy(idx.buckets[pos+1:], idx.buckets[pos:])
	idx.buckets[pos] = nb
	return nil
}

// Remove deletes rowID from v's bucket, collapsing the bucket entirely if
// it becomes empty.
func (idx *BTreeIndex) Remove(v value.Value, rowID RowID) {
	k := value.KeyFrom(v)
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

// FindExact returns the (possibly empty) bucket for v, in insertion order.
func (idx *BTreeIndex) FindExact(v value.Value) []RowID {
	k := value.KeyFrom(v)
	pos, found := idx.search(k)
	if !found {
		return nil
	}
	return append([]RowID(nil), idx.buckets[pos].rowIDs...)
}

// FindRange returns every row-id whose key falls in [start, end] with
// either bound open if nil, concatenating buckets in key order.
func (idx *BTreeIndex) FindRange(start, end *value.Value) []RowID {
	lo := 0
	if start != nil {
		sk := value.KeyFrom(*start)
		lo = sort.Search(len(idx.buckets), func(i int) bool {
			return idx.buckets[i].key.Compare(sk) != value.Less
		})
	}
	hi := len(idx.buckets)
	if end != nil {
		ek := value.KeyFrom(*end)
		hi = sort.Search(len(idx.buckets), func(i int) bool {
			return idx.buckets[i].key.Compare(ek) == value.Greater
		})
	}
	return idx.concat(lo, hi)
}

// FindGreaterThan returns every row-id whose key is strictly greater than v.
func (idx *BTreeIndex) FindGreaterThan(v value.Value) []RowID {
	k := value.KeyFrom(v)
	lo := sort.Search(len(idx.buckets), func(i int) bool {
		return idx.buckets[i].key.Compare(k) == value.Greater
	})
	return idx.concat(lo, len(idx.buckets))
}

// FindLessThan returns every row-id whose key is strictly less than v.
func (idx *BTreeIndex) FindLessThan(v value.Value) []RowID {
	k := value.KeyFrom(v)
	hi := sort.Search(len(idx.buckets), func(i int) bool {
		return idx.buckets[i].key.Compare(k) != value.Less
	})
	return idx.concat(0, hi)
}

func (idx *BTreeIndex) concat(lo, hi int) []RowID {
	var out []RowID
	for i := lo; i < hi; i++ {
		out = append(out, idx.buckets[i].rowIDs...)
	}
	return out
}

// AllKeys returns every distinct key currently present, in key order.
func (idx *BTreeIndex) AllKeys() []value.Key {
	keys := make([]value.Key, len(idx.buckets))
	for i, b := range idx.buckets {
		keys[i] = b.key
	}
	return keys
}

// Size returns the number of distinct keys in the index.
func (idx *BTreeIndex) Size() int { return len(idx.buckets) }

// Rebuild clears the index and re-inserts the given (value, rowID) pairs,
// preserving uniqueness checks.
func (idx *BTreeIndex) Rebuild(data []struct {
	Value value.Value
	RowID RowID
}) error {
	idx.buckets = nil
	for _, d := range data {
		if err := idx.Insert(d.Value, d.RowID); err != nil {
			return err
		}
	}
	return nil
}

// Clear empties the index without validating anything.
func (idx *BTreeIndex) Clear() { idx.buckets = nil }
