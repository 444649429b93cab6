package bloomset

import "github.com/MirseoDB/mirseodb/internal/value"

// ColumnSet holds one Filter per column, built from a table's current
// rows.
type ColumnSet struct {
	filters           map[string]*Filter
	rowCount          int
	falsePositiveRate float64
}

// NewColumnSet creates an empty set using the given false-positive rate
// (0.01 when fpRate <= 0).
func NewColumnSet(fpRate float64) *ColumnSet {
	if fpRate <= 0 {
		fpRate = DefaultFalsePositiveRate
	}
	return &ColumnSet{filters: make(map[string]*Filter), falsePositiveRate: fpRate}
}

// BuildFromTable rebuilds every column filter from scratch using the
// table's current rows.
func (cs *ColumnSet) BuildFromTable(rows []value.Row) {
	cs.filters = make(map[string]*Filter)
	cs.rowCount = len(rows)
	expected := uint64(cs.rowCount)
	for _, row := range rows {
		for col, v := range row {
			f, ok := cs.filters[col]
			if !ok {
				f = NewFilter(expected, cs.falsePositiveRate)
				cs.filters[col] = f
			}
			f.Insert(v)
		}
	}
}

// RefreshColumn rebuilds a single column's filter from the given values,
// for callers that bulk-mutated one column and don't want to pay for a
// wholesale rebuild.
func (cs *ColumnSet) RefreshColumn(column string, values []value.Value) {
	expected := uint64(len(values))
	f := NewFilter(expected, cs.falsePositiveRate)
	for _, v := range values {
		f.Insert(v)
	}
	cs.filters[column] = f
}

// MightContain reports whether column's filter says v could be present.
// Absent filters (unknown column) conservatively report true so callers
// never skip a scan based on missing filter metadata.
func (cs *ColumnSet) MightContain(column string, v value.Value) bool {
	f, ok := cs.filters[column]
	if !ok {
		return true
	}
	return f.Contains(v)
}

// CanSkipScan reports whether the scanner can safely skip entirely: true
// only when a filter exists for column and definitively says v is absent.
func (cs *ColumnSet) CanSkipScan(column string, v value.Value) bool {
	f, ok := cs.filters[column]
	if !ok {
		return false
	}
	return !f.Contains(v)
}

// HasColumn reports whether a filter exists for column.
func (cs *ColumnSet) HasColumn(column string) bool {
	_, ok := cs.filters[column]
	return ok
}

// ColumnStats describes one column's filter for diagnostics.
type ColumnStats struct {
	Column             string
	FalsePositiveRate  float64
	ElementCount       uint64
}

// Stats returns per-column diagnostic stats.
func (cs *ColumnSet) Stats() []ColumnStats {
	out := make([]ColumnStats, 0, len(cs.filters))
	for name, f := range cs.filters {
		out = append(out, ColumnStats{Column: name, FalsePositiveRate: f.FalsePositiveProbability(), ElementCount: f.ElementCount()})
	}
	return out
}

// Clear empties the set.
func (cs *ColumnSet) Clear() {
	cs.filters = make(map[string]*Filter)
	cs.rowCount = 0
}
