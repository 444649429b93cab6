// Package engine ties the analyzer, table/index model, planner, scanner,
// Bloom sets, and codec together behind a single mutual-exclusion lock,
// exposing CreateDatabase/Load/Execute as the sole entry points every
// collaborator (HTTP, CLI, tests) goes through.
package engine

import (
	"sort"
	"strings"
	"sync"

	"github.com/MirseoDB/mirseodb/internal/ast"
	"github.com/MirseoDB/mirseodb/internal/bloomset"
	"github.com/MirseoDB/mirseodb/internal/codec"
	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/index"
	"github.com/MirseoDB/mirseodb/internal/logging"
	"github.com/MirseoDB/mirseodb/internal/planner"
	"github.com/MirseoDB/mirseodb/internal/scanner"
	"github.com/MirseoDB/mirseodb/internal/table"
	"github.com/MirseoDB/mirseodb/internal/value"
)

var log = logging.GetLogger("engine")

// Options configures an Engine instance: the Bloom false-positive target,
// the scanner's chunk/memory defaults, and the planner's cost constants.
type Options struct {
	BloomFalsePositiveRate float64
	ScanOptions            scanner.Options
	Costs                  planner.Costs
}

// DefaultOptions returns the stock defaults for all three knobs.
func DefaultOptions() Options {
	return Options{
		BloomFalsePositiveRate: bloomset.DefaultFalsePositiveRate,
		ScanOptions:            scanner.DefaultOptions(),
		Costs:                  planner.DefaultCosts(),
	}
}

// Engine owns one database's tables, its persistence codec, and its
// per-table Bloom sets and planner statistics, all guarded by a single
// lock. There are no internal suspension points: every Execute call
// holds mu for its entire duration.
type Engine struct {
	mu sync.Mutex

	name    string
	storage *codec.StorageEngine
	opts    Options

	tables map[string]*table.Table
	blooms map[string]*bloomset.ColumnSet
	stats  *planner.Stats
}

// CreateDatabase idempotently creates the on-disk database directory, an
// empty main data file, and a default routing config file, then returns a
// fresh Engine instance.
func CreateDatabase(configDir, name string, opts Options) (*Engine, error) {
	storage := codec.New(configDir, name)
	e := newEngine(name, storage, opts)

	tables, err := storage.Load()
	if err != nil {
		return nil, err
	}
	e.tables = tables
	for tname, t := range tables {
		bs := bloomset.NewColumnSet(e.opts.BloomFalsePositiveRate)
		bs.BuildFromTable(t.Rows)
		e.blooms[tname] = bs
	}
	if err := storage.Save(e.tables); err != nil {
		return nil, err
	}
	if err := writeDefaultRouteConfig(configDir); err != nil {
		return nil, err
	}
	log.Info("created database", "name", name)
	return e, nil
}

// Load reads an existing database's tables from disk, rebuilds every
// table's Bloom sets and indexes, and returns the ready Engine.
func Load(configDir, name string, opts Options) (*Engine, error) {
	storage := codec.New(configDir, name)
	tables, err := storage.Load()
	if err != nil {
		return nil, err
	}
	e := newEngine(name, storage, opts)
	e.tables = tables
	for tname, t := range tables {
		bs := bloomset.NewColumnSet(opts.BloomFalsePositiveRate)
		bs.BuildFromTable(t.Rows)
		e.blooms[tname] = bs
	}
	return e, nil
}

func newEngine(name string, storage *codec.StorageEngine, opts Options) *Engine {
	if opts.BloomFalsePositiveRate <= 0 {
		opts.BloomFalsePositiveRate = bloomset.DefaultFalsePositiveRate
	}
	return &Engine{
		name:    name,
		storage: storage,
		opts:    opts,
		tables:  make(map[string]*table.Table),
		blooms:  make(map[string]*bloomset.ColumnSet),
		stats:   planner.NewStats(),
	}
}

// TableInfo is a read-only summary of one table for tooling.
type TableInfo struct {
	Name        string
	ColumnCount int
	RowCount    int
	NextRowID   uint64
}

// TableInfos returns a summary of every table, sorted by name.
func (e *Engine) TableInfos() []TableInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]TableInfo, 0, len(e.tables))
	for name, t := range e.tables {
		out = append(out, TableInfo{
			Name:        name,
			ColumnCount: len(t.Columns),
			RowCount:    len(t.Rows),
			NextRowID:   t.NextRowID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute dispatches a parsed statement to its handler under the engine
// lock, persisting afterward for every mutating statement kind.
func (e *Engine) Execute(stmt ast.Statement) ([]table.Row, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch s := stmt.(type) {
	case ast.CreateDatabase:
		return nil, e.execCreateDatabase(s)
	case ast.CreateTable:
		return nil, e.mutate(stmt, s.TableName, func() error { return e.execCreateTable(s) })
	case ast.Insert:
		return nil, e.mutate(stmt, s.TableName, func() error { return e.execInsert(s) })
	case ast.Select:
		return e.execSelect(s)
	case ast.Update:
		return nil, e.mutate(stmt, s.TableName, func() error { return e.execUpdate(s) })
	case ast.Delete:
		return nil, e.mutate(stmt, s.TableName, func() error { return e.execDelete(s) })
	case ast.DropTable:
		return nil, e.mutate(stmt, s.TableName, func() error { return e.execDropTable(s) })
	case ast.DropDatabase:
		return nil, e.mutate(stmt, s.DatabaseName, func() error { return e.execDropDatabase(s) })
	case ast.AlterTable:
		return nil, e.mutate(stmt, s.TableName, func() error { return e.execAlterTable(s) })
	case ast.CreateIndex:
		return nil, e.mutate(stmt, s.TableName, func() error { return e.execCreateIndex(s) })
	case ast.DropIndex:
		return nil, e.mutate(stmt, "", func() error { return e.execDropIndex(s) })
	default:
		return nil, dberr.New(dberr.ParseError, "unsupported statement type %T", stmt)
	}
}

// mutate runs fn and, on success, persists the current table set. A
// failed statement never reaches disk.
func (e *Engine) mutate(stmt ast.Statement, target string, fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	if err := e.storage.Save(e.tables); err != nil {
		return err
	}
	rows := 0
	if t, ok := e.tables[target]; ok {
		rows = len(t.Rows)
	}
	log.Statement(stmt.OperationName(), "target", target, "rows", rows)
	return nil
}

// execCreateDatabase only validates that the statement targets this
// engine's own database: a running Engine is already bound to one
// database name (constructed via CreateDatabase/Load), so a CREATE
// DATABASE statement arriving through Execute cannot spin up a second
// one — that only happens at the collaborator boundary, which owns one
// Engine per database name. Issuing it for the engine's own name is an
// idempotent no-op; any other name is rejected.
func (e *Engine) execCreateDatabase(s ast.CreateDatabase) error {
	if !strings.EqualFold(s.DatabaseName, e.name) {
		return dberr.New(dberr.ParseError, "engine is bound to database %q, cannot create %q", e.name, s.DatabaseName)
	}
	return nil
}

func (e *Engine) table(name string) (*table.Table, error) {
	t, ok := e.tables[name]
	if !ok {
		return nil, dberr.New(dberr.TableNotFound, "table %q not found", name)
	}
	return t, nil
}

func (e *Engine) execCreateTable(s ast.CreateTable) error {
	if _, exists := e.tables[s.TableName]; exists {
		return dberr.New(dberr.ParseError, "table %q already exists", s.TableName)
	}
	t, err := table.New(s.TableName, s.Columns)
	if err != nil {
		return err
	}
	e.tables[s.TableName] = t
	e.blooms[s.TableName] = bloomset.NewColumnSet(e.opts.BloomFalsePositiveRate)
	return nil
}

func (e *Engine) execInsert(s ast.Insert) error {
	t, err := e.table(s.TableName)
	if err != nil {
		return err
	}

	provided := make(map[string]value.Value, len(t.Columns))
	if len(s.Columns) > 0 {
		if len(s.Columns) != len(s.Values) {
			return dberr.New(dberr.ParseError, "column count (%d) does not match value count (%d)", len(s.Columns), len(s.Values))
		}
		for i, col := range s.Columns {
			if !t.HasColumn(col) {
				return dberr.New(dberr.ColumnNotFound, "column %q not found in table %q", col, s.TableName)
			}
			provided[col] = s.Values[i]
		}
	} else {
		if len(s.Values) != len(t.Columns) {
			return dberr.New(dberr.ParseError, "value count (%d) does not match schema column count (%d)", len(s.Values), len(t.Columns))
		}
		for i, col := range t.Columns {
			provided[col.Name] = s.Values[i]
		}
	}

	row := make(table.Row, len(t.Columns))
	for _, col := range t.Columns {
		v, ok := provided[col.Name]
		if !ok {
			if col.Nullable {
				row[col.Name] = value.Null()
				continue
			}
			return dberr.New(dberr.ColumnNotFound, "missing value for required column %q", col.Name)
		}
		coerced, err := sqlparseCoerce(v, col)
		if err != nil {
			return err
		}
		row[col.Name] = coerced
	}

	if _, err := t.AppendRow(row); err != nil {
		return err
	}
	if bs, ok := e.blooms[s.TableName]; ok {
		bs.BuildFromTable(t.Rows)
	}
	return nil
}

// sqlparseCoerce validates a supplied value against its column's declared
// type; the check is the same one sqlparse.CoerceToColumnType performs.
func sqlparseCoerce(v value.Value, col table.ColumnDefinition) (value.Value, error) {
	if v.IsNull() {
		if col.Nullable {
			return v, nil
		}
		return v, dberr.New(dberr.InvalidDataType, "NULL not allowed for column %q", col.Name)
	}
	if v.Tag != col.DataType.ValueTag() {
		return v, dberr.New(dberr.InvalidDataType, "column %q expects %s, got %s", col.Name, col.DataType, v.Tag)
	}
	return v, nil
}

func (e *Engine) execSelect(s ast.Select) ([]table.Row, error) {
	t, err := e.table(s.TableName)
	if err != nil {
		return nil, err
	}

	plan, err := planner.Choose(s.Where, t.Indexes, s.Hint, e.stats, e.opts.Costs)
	if err != nil {
		return nil, err
	}

	candidateIDs, usedIndex := e.candidatesFor(t, plan)
	if usedIndex != "" {
		e.stats.Record(usedIndex, len(candidateIDs), len(t.Rows))
	}

	var rows []table.Row
	if candidateIDs != nil {
		for _, id := range candidateIDs {
			pos := t.PositionOf(id)
			if pos < 0 {
				continue
			}
			row := t.Rows[pos]
			if matchesAllPredicates(row, s.Where) {
				rows = append(rows, row)
			}
		}
		rows = applyLimitOffset(rows, s.Limit, s.Offset)
		return projectRows(rows, s.Columns), nil
	}

	scanPreds := toScannerPredicates(s.Where)
	result, _, err := scanner.Scan(scanner.Request{
		Rows:       t.Rows,
		Bloom:      e.blooms[s.TableName],
		Predicates: scanPreds,
		Columns:    s.Columns,
		Limit:      s.Limit,
		Offset:     s.Offset,
		Options:    e.opts.ScanOptions,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// candidatesFor returns the row-ids a chosen plan narrows the scan to, or
// nil if the plan is a full table scan (the caller then falls back to
// scanner.Scan). The second return is the single-column index name to
// credit in planner.Stats, or "" for composite and intersection plans.
func (e *Engine) candidatesFor(t *table.Table, plan *planner.Plan) ([]uint64, string) {
	switch plan.Kind {
	case planner.KindIndexScan:
		choice := plan.Single[0]
		return candidatesForPredicate(choice.Index, choice.Predicate), choice.Index.Name
	case planner.KindCompositeIndexScan:
		if len(plan.CompositePrefix) == 0 {
			return nil, ""
		}
		return plan.Composite.FindPrefix(plan.CompositePrefix), ""
	case planner.KindIntersection:
		var sets [][]uint64
		for _, choice := range plan.Single {
			sets = append(sets, candidatesForPredicate(choice.Index, choice.Predicate))
		}
		return intersect(sets), ""
	default:
		return nil, ""
	}
}

// candidatesForPredicate computes the row-ids a single-column index
// scan narrows to for pred's operator.
func candidatesForPredicate(idx *index.BTreeIndex, pred planner.Predicate) []uint64 {
	v := pred.Value
	switch pred.Op {
	case planner.Eq:
		return idx.FindExact(v)
	case planner.Gt:
		return idx.FindGreaterThan(v)
	case planner.Ge:
		return idx.FindRange(&v, nil)
	case planner.Lt:
		return idx.FindLessThan(v)
	case planner.Le:
		return idx.FindRange(nil, &v)
	case planner.Ne:
		out := idx.FindLessThan(v)
		return append(out, idx.FindGreaterThan(v)...)
	default:
		return nil
	}
}

func intersect(sets [][]uint64) []uint64 {
	if len(sets) == 0 {
		return nil
	}
	counts := make(map[uint64]int)
	for _, set := range sets {
		seen := make(map[uint64]bool, len(set))
		for _, id := range set {
			if !seen[id] {
				counts[id]++
				seen[id] = true
			}
		}
	}
	var out []uint64
	for id, c := range counts {
		if c == len(sets) {
			out = append(out, id)
		}
	}
	return out
}
