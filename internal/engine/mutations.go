package engine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/MirseoDB/mirseodb/internal/ast"
	"github.com/MirseoDB/mirseodb/internal/bloomset"
	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/planner"
	"github.com/MirseoDB/mirseodb/internal/table"
)

func (e *Engine) execUpdate(s ast.Update) error {
	t, err := e.table(s.TableName)
	if err != nil {
		return err
	}
	for _, sc := range s.Set {
		if !t.HasColumn(sc.Column) {
			return dberr.New(dberr.ColumnNotFound, "column %q not found in table %q", sc.Column, s.TableName)
		}
	}

	positions := matchingPositions(t, s.Where)
	for _, pos := range positions {
		oldRow := t.Rows[pos]
		newRow := oldRow.Clone()
		for _, sc := range s.Set {
			col, _ := t.Column(sc.Column)
			coerced, err := sqlparseCoerce(sc.Value, col)
			if err != nil {
				return err
			}
			newRow[sc.Column] = coerced
		}
		if err := t.Indexes.UpdateAll(oldRow, newRow, t.RowIDs[pos]); err != nil {
			return err
		}
		t.Rows[pos] = newRow
	}

	if len(positions) > 0 {
		e.refreshBloom(s.TableName, t)
	}
	return nil
}

func (e *Engine) execDelete(s ast.Delete) error {
	t, err := e.table(s.TableName)
	if err != nil {
		return err
	}

	if len(s.Where) == 0 {
		t.Clear()
		e.refreshBloom(s.TableName, t)
		return nil
	}

	positions := matchingPositions(t, s.Where)
	if len(positions) == 0 {
		return nil
	}
	t.RemovePositions(positions)
	e.refreshBloom(s.TableName, t)
	return nil
}

func (e *Engine) execDropTable(s ast.DropTable) error {
	if _, ok := e.tables[s.TableName]; !ok {
		return dberr.New(dberr.TableNotFound, "table %q not found", s.TableName)
	}
	delete(e.tables, s.TableName)
	delete(e.blooms, s.TableName)
	return nil
}

func (e *Engine) execDropDatabase(s ast.DropDatabase) error {
	if !strings.EqualFold(s.DatabaseName, e.name) {
		return dberr.New(dberr.ParseError, "engine is bound to database %q, cannot drop %q", e.name, s.DatabaseName)
	}
	e.tables = make(map[string]*table.Table)
	e.blooms = make(map[string]*bloomset.ColumnSet)
	return nil
}

func (e *Engine) execAlterTable(s ast.AlterTable) error {
	t, err := e.table(s.TableName)
	if err != nil {
		return err
	}
	switch action := s.Action.(type) {
	case ast.AddColumn:
		if err := t.AddColumn(action.Column); err != nil {
			return err
		}
	case ast.DropColumn:
		if err := t.DropColumn(action.ColumnName); err != nil {
			return err
		}
	case ast.ModifyColumn:
		if err := t.ModifyColumn(action.Column); err != nil {
			return err
		}
	default:
		return dberr.New(dberr.ParseError, "unknown ALTER TABLE action %T", action)
	}
	e.refreshBloom(s.TableName, t)
	return nil
}

func (e *Engine) execCreateIndex(s ast.CreateIndex) error {
	t, err := e.table(s.TableName)
	if err != nil {
		return err
	}
	if len(s.Columns) == 0 {
		return dberr.New(dberr.ParseError, "CREATE INDEX requires at least one column")
	}

	if len(s.Columns) == 1 {
		if err := t.Indexes.CreateIndex(s.Name, s.Columns[0], s.Unique, false); err != nil {
			return err
		}
	} else if err := t.Indexes.CreateCompositeIndex(s.Name, s.Columns); err != nil {
		return err
	}
	return t.Indexes.RebuildOne(s.Name, t.Rows, t.RowIDs)
}

func (e *Engine) execDropIndex(s ast.DropIndex) error {
	for _, t := range e.tables {
		if err := t.Indexes.DropIndex(s.Name); err == nil {
			return nil
		}
	}
	return dberr.New(dberr.IndexNotFound, "index %q not found", s.Name)
}

func (e *Engine) refreshBloom(tableName string, t *table.Table) {
	bs, ok := e.blooms[tableName]
	if !ok {
		bs = bloomset.NewColumnSet(e.opts.BloomFalsePositiveRate)
		e.blooms[tableName] = bs
	}
	bs.BuildFromTable(t.Rows)
}

// matchingPositions scans the table's current rows for positions
// satisfying every predicate; used by UPDATE and DELETE, which need
// positions (not just row-ids) to mutate/remove in place.
func matchingPositions(t *table.Table, where []planner.Predicate) []int {
	var out []int
	for i, row := range t.Rows {
		if matchesAllPredicates(row, where) {
			out = append(out, i)
		}
	}
	return out
}

func writeDefaultRouteConfig(configDir string) error {
	path := filepath.Join(configDir, "route.cfg")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	const contents = "# MirseoDB routing config\nfallback=\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return dberr.Wrap(dberr.IoError, err, "writing default route.cfg")
	}
	return nil
}
