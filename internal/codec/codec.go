// Package codec implements MirseoDB's custom little-endian binary
// persistence format: a self-describing snapshot of every table's schema
// and rows, with byte-exact round-trip and sorted-column row encoding
// for determinism.
package codec

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/logging"
	"github.com/MirseoDB/mirseodb/internal/table"
	"github.com/MirseoDB/mirseodb/internal/value"
)

var log = logging.GetLogger("codec")

const (
	tagInt   byte = 0
	tagFloat byte = 1
	tagText  byte = 2
	tagBool  byte = 3
	tagNull  byte = 4
)

// StorageEngine persists a database's tables to <configDir>/<dbName>.mdb,
// rewriting the whole file on every save (written to a temporary file,
// then renamed over the snapshot).
type StorageEngine struct {
	configDir string
	dbName    string
}

func New(configDir, dbName string) *StorageEngine {
	return &StorageEngine{configDir: configDir, dbName: dbName}
}

func (s *StorageEngine) FilePath() string {
	return filepath.Join(s.configDir, s.dbName+".mdb")
}

// Save serializes every table and rewrites the snapshot file whole.
func (s *StorageEngine) Save(tables map[string]*table.Table) error {
	if err := os.MkdirAll(s.configDir, 0o755); err != nil {
		return dberr.Wrap(dberr.IoError, err, "creating config directory %q", s.configDir)
	}

	buf := Serialize(tables)

	tmp := s.FilePath() + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return dberr.Wrap(dberr.IoError, err, "writing snapshot")
	}
	if err := os.Rename(tmp, s.FilePath()); err != nil {
		return dberr.Wrap(dberr.IoError, err, "replacing snapshot file")
	}
	log.Debug("saved snapshot", "path", s.FilePath(), "tables", len(tables), "bytes", len(buf))
	return nil
}

// Load reads and deserializes the snapshot file, returning an empty map
// if it does not yet exist, and reconstructs each table's indexes from
// its rows per the table layer's auto-indexing rules.
func (s *StorageEngine) Load() (map[string]*table.Table, error) {
	path := s.FilePath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]*table.Table{}, nil
	}
	if err != nil {
		return nil, dberr.Wrap(dberr.IoError, err, "reading snapshot %q", path)
	}
	tables, err := Deserialize(data)
	if err != nil {
		return nil, err
	}
	log.Info("loaded snapshot", "path", path, "tables", len(tables))
	return tables, nil
}

// Serialize encodes every table into the snapshot wire format.
func Serialize(tables map[string]*table.Table) []byte {
	var buf bytes.Buffer

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	// Deterministic table order, same spirit as the row sort: without it
	// save(load()) == save(current) would not hold byte-for-byte.
	sort.Strings(names)

	writeU32(&buf, uint32(len(names)))
	for _, name := range names {
		writeTable(&buf, tables[name])
	}
	return buf.Bytes()
}

func writeTable(buf *bytes.Buffer, t *table.Table) {
	writeString(buf, t.Name)

	writeU32(buf, uint32(len(t.Columns)))
	for _, c := range t.Columns {
		writeColumnDef(buf, c)
	}

	writeU32(buf, uint32(len(t.Rows)))
	for _, row := range t.Rows {
		writeRow(buf, row)
	}
}

func writeColumnDef(buf *bytes.Buffer, c table.ColumnDefinition) {
	writeString(buf, c.Name)
	buf.WriteByte(dataTypeTag(c.DataType))
	buf.WriteByte(boolByte(c.Nullable))
	buf.WriteByte(boolByte(c.PrimaryKey))
}

func writeRow(buf *bytes.Buffer, row table.Row) {
	cols := table.SortedColumns(row)
	writeU32(buf, uint32(len(cols)))
	for _, col := range cols {
		writeString(buf, col)
		writeValue(buf, row[col])
	}
}

func writeValue(buf *bytes.Buffer, v value.Value) {
	switch v.Tag {
	case value.TypeInt:
		buf.WriteByte(tagInt)
		writeI64(buf, v.I)
	case value.TypeFloat:
		buf.WriteByte(tagFloat)
		writeF64(buf, v.F)
	case value.TypeText:
		buf.WriteByte(tagText)
		writeString(buf, v.S)
	case value.TypeBool:
		buf.WriteByte(tagBool)
		buf.WriteByte(boolByte(v.B))
	default:
		buf.WriteByte(tagNull)
	}
}

// Deserialize decodes the wire format back into tables, reconstructing
// indexes and next_row_id from the row data.
func Deserialize(data []byte) (map[string]*table.Table, error) {
	r := &reader{buf: data}

	tableCount, err := r.u32()
	if err != nil {
		return nil, err
	}

	out := make(map[string]*table.Table, tableCount)
	for i := uint32(0); i < tableCount; i++ {
		t, err := readTable(r)
		if err != nil {
			return nil, err
		}
		out[t.Name] = t
	}
	return out, nil
}

func readTable(r *reader) (*table.Table, error) {
	name, err := r.str()
	if err != nil {
		return nil, err
	}
	colCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	columns := make([]table.ColumnDefinition, colCount)
	for i := range columns {
		c, err := readColumnDef(r)
		if err != nil {
			return nil, err
		}
		columns[i] = c
	}

	t, err := table.New(name, columns)
	if err != nil {
		return nil, err
	}

	rowCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	rows := make([]table.Row, rowCount)
	rowIDs := make([]uint64, rowCount)
	for i := uint32(0); i < rowCount; i++ {
		row, err := readRow(r)
		if err != nil {
			return nil, err
		}
		rows[i] = row
		rowIDs[i] = uint64(i)
	}
	t.Rows = rows
	t.RowIDs = rowIDs
	t.NextRowID = uint64(rowCount)
	if err := t.Indexes.RebuildAll(rowsAsValueRows(rows), rowIDs); err != nil {
		return nil, err
	}
	return t, nil
}

func rowsAsValueRows(rows []table.Row) []value.Row {
	out := make([]value.Row, len(rows))
	for i, r := range rows {
		out[i] = value.Row(r)
	}
	return out
}

func readColumnDef(r *reader) (table.ColumnDefinition, error) {
	name, err := r.str()
	if err != nil {
		return table.ColumnDefinition{}, err
	}
	typeTag, err := r.byte1()
	if err != nil {
		return table.ColumnDefinition{}, err
	}
	dt, err := dataTypeFromTag(typeTag)
	if err != nil {
		return table.ColumnDefinition{}, err
	}
	nullableB, err := r.byte1()
	if err != nil {
		return table.ColumnDefinition{}, err
	}
	pkB, err := r.byte1()
	if err != nil {
		return table.ColumnDefinition{}, err
	}
	return table.ColumnDefinition{
		Name:       name,
		DataType:   dt,
		Nullable:   nullableB != 0,
		PrimaryKey: pkB != 0,
	}, nil
}

func readRow(r *reader) (table.Row, error) {
	colCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	row := make(table.Row, colCount)
	for i := uint32(0); i < colCount; i++ {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		row[name] = v
	}
	return row, nil
}

func readValue(r *reader) (value.Value, error) {
	tag, err := r.byte1()
	if err != nil {
		return value.Value{}, err
	}
	switch tag {
	case tagInt:
		i, err := r.i64()
		return value.Int(i), err
	case tagFloat:
		f, err := r.f64()
		return value.Float(f), err
	case tagText:
		s, err := r.str()
		return value.Text(s), err
	case tagBool:
		b, err := r.byte1()
		return value.Bool(b != 0), err
	case tagNull:
		return value.Null(), nil
	default:
		return value.Value{}, dberr.New(dberr.IoError, "unknown value tag %d", tag)
	}
}

func dataTypeTag(d table.DataType) byte {
	switch d {
	case table.Integer:
		return 0
	case table.Float:
		return 1
	case table.Text:
		return 2
	case table.Boolean:
		return 3
	default:
		return 2
	}
}

func dataTypeFromTag(tag byte) (table.DataType, error) {
	switch tag {
	case 0:
		return table.Integer, nil
	case 1:
		return table.Float, nil
	case 2:
		return table.Text, nil
	case 3:
		return table.Boolean, nil
	default:
		return 0, dberr.New(dberr.IoError, "unknown column type tag %d", tag)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

