package index

import (
	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/value"
)

// Manager owns every single-column and composite index for one table.
type Manager struct {
	single     []*BTreeIndex
	composites []*CompositeIndex
}

func NewManager() *Manager {
	return &Manager{}
}

// CreateIndex adds a new single-column index. IndexAlreadyExists if the
// name is taken.
func (m *Manager) CreateIndex(name, column string, unique, primary bool) error {
	if m.findSingle(name) != nil || m.findComposite(name) != nil {
		return dberr.New(dberr.IndexAlreadyExists, "index %q already exists", name)
	}
	m.single = append(m.single, NewBTreeIndex(name, column, unique, primary))
	return nil
}

// CreateCompositeIndex adds a new composite index over columns, in order.
func (m *Manager) CreateCompositeIndex(name string, columns []string) error {
	if m.findSingle(name) != nil || m.findComposite(name) != nil {
		return dberr.New(dberr.IndexAlreadyExists, "index %q already exists", name)
	}
	m.composites = append(m.composites, NewCompositeIndex(name, columns))
	return nil
}

// DropIndex removes any index (single or composite) with the given name.
func (m *Manager) DropIndex(name string) error {
	for i, idx := range m.single {
		if idx.Name == name {
			m.single = append(m.single[:i], m.single[i+1:]...)
			return nil
		}
	}
	for i, idx := range m.composites {
		if idx.Name == name {
			m.composites = append(m.composites[:i], m.composites[i+1:]...)
			return nil
		}
	}
	return dberr.New(dberr.IndexNotFound, "index %q not found", name)
}

func (m *Manager) findSingle(name string) *BTreeIndex {
	for _, idx := range m.single {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

func (m *Manager) findComposite(name string) *CompositeIndex {
	for _, idx := range m.composites {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// Get returns the single-column index with the given name, if any.
func (m *Manager) Get(name string) *BTreeIndex { return m.findSingle(name) }

// GetComposite returns the composite index with the given name, if any.
func (m *Manager) GetComposite(name string) *CompositeIndex { return m.findComposite(name) }

// ForColumn returns every single-column index defined on column.
func (m *Manager) ForColumn(column string) []*BTreeIndex {
	var out []*BTreeIndex
	for _, idx := range m.single {
		if idx.ColumnName == column {
			out = append(out, idx)
		}
	}
	return out
}

// CompositesLeadingWith returns every composite index whose leading
// column is column.
func (m *Manager) CompositesLeadingWith(column string) []*CompositeIndex {
	var out []*CompositeIndex
	for _, idx := range m.composites {
		if idx.LeadingColumn() == column {
			out = append(out, idx)
		}
	}
	return out
}

// All returns every single-column index, for best-index selection.
func (m *Manager) All() []*BTreeIndex { return m.single }

// AllComposites returns every composite index.
func (m *Manager) AllComposites() []*CompositeIndex { return m.composites }

// PrimaryIndex returns the table's single primary-key index, if any.
func (m *Manager) PrimaryIndex() *BTreeIndex {
	for _, idx := range m.single {
		if idx.IsPrimary {
			return idx
		}
	}
	return nil
}

// BestIndexForColumn picks among the indexes on column: primary before
// unique before plain, otherwise first-defined.
func (m *Manager) BestIndexForColumn(column string) *BTreeIndex {
	candidates := m.ForColumn(column)
	var best *BTreeIndex
	rank := func(idx *BTreeIndex) int {
		switch {
		case idx.IsPrimary:
			return 0
		case idx.IsUnique:
			return 1
		default:
			return 2
		}
	}
	for _, idx := range candidates {
		if best == nil || rank(idx) < rank(best) {
			best = idx
		}
	}
	return best
}

// InsertAll inserts rowID into every single-column and composite index
// whose columns are present in row. On a uniqueness failure the
// insertions already applied are rolled back, so a rejected row never
// leaves stray index entries behind.
func (m *Manager) InsertAll(row value.Row, rowID RowID) error {
	for i, idx := range m.single {
		if v, ok := row[idx.ColumnName]; ok {
			if err := idx.Insert(v, rowID); err != nil {
				for _, prev := range m.single[:i] {
					if pv, ok := row[prev.ColumnName]; ok {
						prev.Remove(pv, rowID)
					}
				}
				return err
			}
		}
	}
	for _, idx := range m.composites {
		if vals, ok := compositeValues(idx, row); ok {
			idx.Insert(vals, rowID)
		}
	}
	return nil
}

// RemoveAll removes rowID from every index that holds it.
func (m *Manager) RemoveAll(row value.Row, rowID RowID) {
	for _, idx := range m.single {
		if v, ok := row[idx.ColumnName]; ok {
			idx.Remove(v, rowID)
		}
	}
	for _, idx := range m.composites {
		if vals, ok := compositeValues(idx, row); ok {
			idx.Remove(vals, rowID)
		}
	}
}

// UpdateAll reinserts rowID's index entries given old and new row
// contents, keeping indexes exactly consistent with updated rows. If the
// new row violates a uniqueness constraint, the old entries are restored
// before the error is returned.
func (m *Manager) UpdateAll(oldRow, newRow value.Row, rowID RowID) error {
	m.RemoveAll(oldRow, rowID)
	if err := m.InsertAll(newRow, rowID); err != nil {
		if restoreErr := m.InsertAll(oldRow, rowID); restoreErr != nil {
			return restoreErr
		}
		return err
	}
	return nil
}

// Clear empties every index (used by DELETE without WHERE).
func (m *Manager) Clear() {
	for _, idx := range m.single {
		idx.Clear()
	}
	for _, idx := range m.composites {
		idx.Clear()
	}
}

// RebuildAll clears and re-populates every index from the given table
// snapshot (row, rowID pairs), used on load.
func (m *Manager) RebuildAll(rows []value.Row, rowIDs []RowID) error {
	for _, idx := range m.single {
		idx.Clear()
		for i, row := range rows {
			if v, ok := row[idx.ColumnName]; ok {
				if err := idx.Insert(v, rowIDs[i]); err != nil {
					return err
				}
			}
		}
	}
	for _, idx := range m.composites {
		idx.Clear()
		for i, row := range rows {
			if vals, ok := compositeValues(idx, row); ok {
				idx.Insert(vals, rowIDs[i])
			}
		}
	}
	return nil
}

// RebuildOne populates a single named index (single-column or composite)
// from the given table snapshot, used after CreateIndex/CreateCompositeIndex
// to backfill an index created against an already-populated table.
func (m *Manager) RebuildOne(name string, rows []value.Row, rowIDs []RowID) error {
	if idx := m.findSingle(name); idx != nil {
		idx.Clear()
		for i, row := range rows {
			if v, ok := row[idx.ColumnName]; ok {
				if err := idx.Insert(v, rowIDs[i]); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if idx := m.findComposite(name); idx != nil {
		idx.Clear()
		for i, row := range rows {
			if vals, ok := compositeValues(idx, row); ok {
				idx.Insert(vals, rowIDs[i])
			}
		}
		return nil
	}
	return dberr.New(dberr.IndexNotFound, "index %q not found", name)
}

func compositeValues(idx *CompositeIndex, row value.Row) ([]value.Value, bool) {
	vals := make([]value.Value, len(idx.Columns))
	for i, col := range idx.Columns {
		v, ok := row[col]
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}
