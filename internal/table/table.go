// Package table defines MirseoDB's row/column/table data model: the
// structures every other subsystem (index, bloom, planner, scanner,
// engine, codec) shares.
package table

import (
	"sort"

	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/index"
	"github.com/MirseoDB/mirseodb/internal/value"
)

// DataType is a column's declared type.
type DataType uint8

const (
	Integer DataType = iota
	Float
	Text
	Boolean
)

func (d DataType) String() string {
	switch d {
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	case Text:
		return "TEXT"
	case Boolean:
		return "BOOLEAN"
	default:
		return "UNKNOWN"
	}
}

// ValueTag returns the value.Type this column's DataType stores.
func (d DataType) ValueTag() value.Type {
	switch d {
	case Integer:
		return value.TypeInt
	case Float:
		return value.TypeFloat
	case Text:
		return value.TypeText
	case Boolean:
		return value.TypeBool
	default:
		return value.TypeNull
	}
}

// Default returns the zero value for a DataType, used by ALTER TABLE ADD
// COLUMN to backfill existing rows.
func (d DataType) Default() value.Value {
	switch d {
	case Integer:
		return value.Int(0)
	case Float:
		return value.Float(0.0)
	case Text:
		return value.Text("")
	case Boolean:
		return value.Bool(false)
	default:
		return value.Null()
	}
}

// ColumnDefinition describes one column of a table.
type ColumnDefinition struct {
	Name       string
	DataType   DataType
	Nullable   bool
	PrimaryKey bool
}

// Row is an unordered mapping from column name to Value. Row identity
// within a table is carried out-of-band by row-id, never by the row's own
// contents.
type Row = value.Row

// SortedColumns returns the row's column names sorted, used by the codec
// to guarantee a deterministic byte-exact encoding.
func SortedColumns(r Row) []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Table is a schema plus its rows, the per-table index manager, and the
// monotonic row-id counter.
type Table struct {
	Name        string
	Columns     []ColumnDefinition
	Rows        []Row
	RowIDs      []uint64 // RowIDs[i] is the row-id of Rows[i]
	Indexes     *index.Manager
	NextRowID   uint64
	columnNames map[string]bool // cache for fast membership checks
}

// New creates an empty table with the given schema and installs the
// automatic indexes: one unique primary index per PRIMARY KEY column
// (named pk_<col>), and one non-unique index per NOT-NULL non-primary
// column (named idx_<table>_<col>).
func New(name string, columns []ColumnDefinition) (*Table, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c.Name] {
			return nil, dberr.New(dberr.ParseError, "duplicate column %q in table %q", c.Name, name)
		}
		seen[c.Name] = true
	}

	t := &Table{
		Name:    name,
		Columns: columns,
		Indexes: index.NewManager(),
	}
	t.rebuildColumnNameCache()

	for _, c := range columns {
		if c.PrimaryKey {
			if err := t.Indexes.CreateIndex("pk_"+c.Name, c.Name, true, true); err != nil {
				return nil, err
			}
		} else if !c.Nullable {
			if err := t.Indexes.CreateIndex("idx_"+name+"_"+c.Name, c.Name, false, false); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (t *Table) rebuildColumnNameCache() {
	t.columnNames = make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		t.columnNames[c.Name] = true
	}
}

// HasColumn reports whether name is a declared column.
func (t *Table) HasColumn(name string) bool { return t.columnNames[name] }

// Column returns the ColumnDefinition for name, if present.
func (t *Table) Column(name string) (ColumnDefinition, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDefinition{}, false
}

// AppendRow assigns the next row-id, appends the row, and inserts it into
// every applicable index. Callers are responsible for validating the row
// against the schema first.
func (t *Table) AppendRow(row Row) (uint64, error) {
	if err := t.Indexes.InsertAll(row, t.NextRowID); err != nil {
		return 0, err
	}
	t.Rows = append(t.Rows, row)
	t.RowIDs = append(t.RowIDs, t.NextRowID)
	id := t.NextRowID
	t.NextRowID++
	return id, nil
}

// RemoveAt deletes the row at position pos (not row-id), removing it from
// all indexes first.
func (t *Table) RemoveAt(pos int) {
	t.Indexes.RemoveAll(t.Rows[pos], t.RowIDs[pos])
	t.Rows = append(t.Rows[:pos], t.Rows[pos+1:]...)
	t.RowIDs = append(t.RowIDs[:pos], t.RowIDs[pos+1:]...)
}

// RemovePositions deletes rows at the given positions, highest index
// first, so earlier removals don't shift later positions out from under
// us.
func (t *Table) RemovePositions(positions []int) {
	sorted := append([]int(nil), positions...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, pos := range sorted {
		t.RemoveAt(pos)
	}
}

// Clear removes every row but leaves NextRowID untouched; row-ids are
// never reused within a table's lifetime, even after DELETE without
// WHERE.
func (t *Table) Clear() {
	t.Rows = nil
	t.RowIDs = nil
	t.Indexes.Clear()
}

// AddColumn appends col to the schema, backfills its zero value into
// every existing row, and installs the same auto-index col would have
// received at CREATE TABLE time.
func (t *Table) AddColumn(col ColumnDefinition) error {
	if t.columnNames[col.Name] {
		return dberr.New(dberr.ParseError, "column %q already exists in table %q", col.Name, t.Name)
	}
	t.Columns = append(t.Columns, col)
	t.rebuildColumnNameCache()

	def := col.DataType.Default()
	for i, row := range t.Rows {
		row[col.Name] = def
		t.Rows[i] = row
	}

	if col.PrimaryKey {
		if err := t.Indexes.CreateIndex("pk_"+col.Name, col.Name, true, true); err != nil {
			return err
		}
	} else if !col.Nullable {
		if err := t.Indexes.CreateIndex("idx_"+t.Name+"_"+col.Name, col.Name, false, false); err != nil {
			return err
		}
	} else {
		return nil
	}
	return t.Indexes.RebuildOne(indexNameFor(t.Name, col), t.Rows, t.RowIDs)
}

func indexNameFor(tableName string, col ColumnDefinition) string {
	if col.PrimaryKey {
		return "pk_" + col.Name
	}
	return "idx_" + tableName + "_" + col.Name
}

// DropColumn removes col from the schema, erases its value from every
// row, and drops any auto-index defined on it.
func (t *Table) DropColumn(name string) error {
	idx := -1
	for i, c := range t.Columns {
		if c.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return dberr.New(dberr.ColumnNotFound, "column %q not found in table %q", name, t.Name)
	}
	col := t.Columns[idx]
	t.Columns = append(t.Columns[:idx], t.Columns[idx+1:]...)
	t.rebuildColumnNameCache()

	for _, row := range t.Rows {
		delete(row, name)
	}

	_ = t.Indexes.DropIndex(indexNameFor(t.Name, col)) // no-op if none was installed
	return nil
}

// ModifyColumn changes a column's declared type/nullability/primary-key
// metadata without coercing any stored value.
func (t *Table) ModifyColumn(col ColumnDefinition) error {
	for i, c := range t.Columns {
		if c.Name == col.Name {
			t.Columns[i] = col
			t.rebuildColumnNameCache()
			return nil
		}
	}
	return dberr.New(dberr.ColumnNotFound, "column %q not found in table %q", col.Name, t.Name)
}

// PositionOf returns the row position for a row-id, or -1 if absent.
func (t *Table) PositionOf(rowID uint64) int {
	for i, id := range t.RowIDs {
		if id == rowID {
			return i
		}
	}
	return -1
}
