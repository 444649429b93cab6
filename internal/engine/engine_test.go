package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MirseoDB/mirseodb/internal/ast"
	"github.com/MirseoDB/mirseodb/internal/codec"
	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/planner"
	"github.com/MirseoDB/mirseodb/internal/sqlparse"
	"github.com/MirseoDB/mirseodb/internal/table"
	"github.com/MirseoDB/mirseodb/internal/value"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := CreateDatabase(t.TempDir(), "testdb", DefaultOptions())
	require.NoError(t, err)
	return eng
}

func mustExec(t *testing.T, e *Engine, sql string) []table.Row {
	t.Helper()
	stmt, err := sqlparse.Parse(sql)
	require.NoError(t, err, "parse %q", sql)
	rows, err := e.Execute(stmt)
	require.NoError(t, err, "execute %q", sql)
	return rows
}

func execErr(t *testing.T, e *Engine, sql string) error {
	t.Helper()
	stmt, err := sqlparse.Parse(sql)
	require.NoError(t, err, "parse %q", sql)
	_, err = e.Execute(stmt)
	require.Error(t, err, "execute %q", sql)
	return err
}

func TestPrimaryKeyViolationScenario(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (1, 'Alice')")

	err := execErr(t, e, "INSERT INTO users (id, name) VALUES (1, 'Bob')")
	assert.True(t, dberr.Is(err, dberr.PrimaryKeyViolation))

	rows := mustExec(t, e, "SELECT * FROM users")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"].I)
	assert.Equal(t, "Alice", rows[0]["name"].S)
}

func TestPrimaryIndexPlanAndStats(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (1, 'Alice')")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (2, 'Bob')")

	rows := mustExec(t, e, "SELECT * FROM users WHERE id = 1")
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0]["name"].S)

	snap := e.stats.Snapshot()
	require.Contains(t, snap, "pk_id")
	assert.Equal(t, uint64(1), snap["pk_id"].AccessCount)

	mustExec(t, e, "SELECT * FROM users WHERE id = 2")
	assert.Equal(t, uint64(2), e.stats.Snapshot()["pk_id"].AccessCount)
}

func TestCompositeIndexScenario(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE t (a INT, b INT)")
	mustExec(t, e, "INSERT INTO t (a, b) VALUES (1, 10)")
	mustExec(t, e, "INSERT INTO t (a, b) VALUES (1, 20)")
	mustExec(t, e, "INSERT INTO t (a, b) VALUES (2, 10)")
	mustExec(t, e, "INSERT INTO t (a, b) VALUES (2, 20)")
	mustExec(t, e, "CREATE INDEX ci ON t (a, b)")

	rows := mustExec(t, e, "SELECT * FROM t WHERE a = 1 AND b = 20")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["a"].I)
	assert.Equal(t, int64(20), rows[0]["b"].I)
}

func TestDeleteWithoutWhereClearsRowsKeepsNextRowID(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (1, 'Alice')")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (2, 'Bob')")

	mustExec(t, e, "DELETE FROM users")

	rows := mustExec(t, e, "SELECT * FROM users")
	assert.Empty(t, rows)
	assert.Equal(t, uint64(2), e.tables["users"].NextRowID)
}

func TestInsertDeleteInsertRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (1, 'Alice')")
	mustExec(t, e, "DELETE FROM users WHERE id = 1")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (1, 'Alice')")

	rows := mustExec(t, e, "SELECT * FROM users")
	assert.Len(t, rows, 1)
}

func TestCreateDropCreateIndex(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE t (a INT, b INT)")
	mustExec(t, e, "CREATE INDEX ix ON t (a)")
	mustExec(t, e, "DROP INDEX ix")
	mustExec(t, e, "CREATE INDEX ix ON t (a)")

	err := execErr(t, e, "DROP INDEX ghost")
	assert.True(t, dberr.Is(err, dberr.IndexNotFound))
}

func TestTextIntoFloatColumnFails(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE t (x FLOAT)")

	// 'NaN' parses as Text, which a Float column rejects.
	err := execErr(t, e, "INSERT INTO t (x) VALUES ('NaN')")
	assert.True(t, dberr.Is(err, dberr.InvalidDataType))
}

func TestProgrammaticNaNRoundTrips(t *testing.T) {
	dir := t.TempDir()
	eng, err := CreateDatabase(dir, "nandb", DefaultOptions())
	require.NoError(t, err)

	mustExec(t, eng, "CREATE TABLE t (x FLOAT)")
	nan := math.NaN()
	_, err = eng.Execute(ast.Insert{TableName: "t", Columns: []string{"x"}, Values: []value.Value{value.Float(nan)}})
	require.NoError(t, err)

	reloaded, err := Load(dir, "nandb", DefaultOptions())
	require.NoError(t, err)
	rows := reloaded.tables["t"].Rows
	require.Len(t, rows, 1)
	assert.Equal(t, math.Float64bits(nan), math.Float64bits(rows[0]["x"].F))
}

func TestSelectLimitOffset(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE t (a INT)")
	for i := 0; i < 10; i++ {
		stmt := ast.Insert{TableName: "t", Columns: []string{"a"}, Values: []value.Value{value.Int(int64(i))}}
		_, err := e.Execute(stmt)
		require.NoError(t, err)
	}

	assert.Empty(t, mustExec(t, e, "SELECT * FROM t LIMIT 0"))
	assert.Len(t, mustExec(t, e, "SELECT * FROM t LIMIT 3"), 3)
	assert.Empty(t, mustExec(t, e, "SELECT * FROM t WHERE a >= 0 OFFSET 10"))
	assert.Len(t, mustExec(t, e, "SELECT * FROM t LIMIT 5 OFFSET 7"), 3)
}

func TestSelectProjection(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (1, 'Alice')")

	rows := mustExec(t, e, "SELECT name FROM users WHERE id = 1")
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0], "name")
	assert.NotContains(t, rows[0], "id")
}

func TestIndexResultsEqualScanResults(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE t (a INT NOT NULL, b INT)")
	for i := 0; i < 20; i++ {
		stmt := ast.Insert{TableName: "t", Columns: []string{"a", "b"}, Values: []value.Value{value.Int(int64(i % 5)), value.Int(int64(i))}}
		_, err := e.Execute(stmt)
		require.NoError(t, err)
	}

	countByB := func(rows []table.Row) map[int64]int {
		out := map[int64]int{}
		for _, r := range rows {
			out[r["b"].I]++
		}
		return out
	}

	// a is auto-indexed (NOT NULL); the index-narrowed result must equal
	// a direct full pass applying the same predicate.
	for _, op := range []string{"=", "!=", "<", "<=", ">", ">="} {
		indexed := mustExec(t, e, "SELECT * FROM t WHERE a "+op+" 2")

		var direct []table.Row
		for _, row := range e.tables["t"].Rows {
			if matchesAllPredicates(row, []planner.Predicate{mustPredicate(t, "a", op, 2)}) {
				direct = append(direct, row)
			}
		}
		assert.Equal(t, countByB(direct), countByB(indexed), "op %s", op)
	}
}

func mustPredicate(t *testing.T, col, op string, v int64) planner.Predicate {
	t.Helper()
	ops := map[string]planner.Op{"=": planner.Eq, "!=": planner.Ne, "<": planner.Lt, "<=": planner.Le, ">": planner.Gt, ">=": planner.Ge}
	pop, ok := ops[op]
	require.True(t, ok)
	return planner.Predicate{Column: col, Op: pop, Value: value.Int(v)}
}

func TestUpdateRewritesRowsAndIndexes(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (1, 'Alice')")
	mustExec(t, e, "UPDATE users SET name = 'Alicia' WHERE id = 1")

	rows := mustExec(t, e, "SELECT * FROM users WHERE name = 'Alicia'")
	require.Len(t, rows, 1)

	// The name auto-index moved with the update.
	idx := e.tables["users"].Indexes.Get("idx_users_name")
	require.NotNil(t, idx)
	assert.Empty(t, idx.FindExact(value.Text("Alice")))
	assert.Len(t, idx.FindExact(value.Text("Alicia")), 1)
}

func TestUpdateWithoutWhereTouchesAllRows(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE t (a INT, b INT)")
	mustExec(t, e, "INSERT INTO t (a, b) VALUES (1, 1)")
	mustExec(t, e, "INSERT INTO t (a, b) VALUES (2, 2)")
	mustExec(t, e, "UPDATE t SET b = 9")

	rows := mustExec(t, e, "SELECT * FROM t WHERE b = 9")
	assert.Len(t, rows, 2)
}

func TestAlterTableLifecycle(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE t (a INT)")
	mustExec(t, e, "INSERT INTO t (a) VALUES (1)")

	mustExec(t, e, "ALTER TABLE t ADD COLUMN b INT NOT NULL")
	rows := mustExec(t, e, "SELECT * FROM t")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(0), rows[0]["b"].I)

	mustExec(t, e, "ALTER TABLE t MODIFY COLUMN b VARCHAR")
	mustExec(t, e, "ALTER TABLE t DROP COLUMN b")
	rows = mustExec(t, e, "SELECT * FROM t")
	assert.NotContains(t, rows[0], "b")
}

func TestDropTableAndDatabase(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE t (a INT)")
	mustExec(t, e, "DROP TABLE t")
	err := execErr(t, e, "SELECT * FROM t")
	assert.True(t, dberr.Is(err, dberr.TableNotFound))

	mustExec(t, e, "CREATE TABLE t2 (a INT)")
	mustExec(t, e, "DROP DATABASE testdb")
	assert.Empty(t, e.tables)

	err = execErr(t, e, "DROP DATABASE otherdb")
	assert.True(t, dberr.Is(err, dberr.ParseError))
}

func TestMissingRequiredColumn(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)")

	err := execErr(t, e, "INSERT INTO users (id) VALUES (1)")
	assert.True(t, dberr.Is(err, dberr.ColumnNotFound))
}

func TestEmptyTableBehaviours(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE t (a INT)")

	assert.Empty(t, mustExec(t, e, "SELECT * FROM t"))
	mustExec(t, e, "DELETE FROM t WHERE a = 1") // no-op
	mustExec(t, e, "DELETE FROM t")             // no-op
}

func TestPersistenceAcrossReload(t *testing.T) {
	dir := t.TempDir()
	eng, err := CreateDatabase(dir, "mydb", DefaultOptions())
	require.NoError(t, err)

	mustExec(t, eng, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)")
	mustExec(t, eng, "INSERT INTO users (id, name) VALUES (1, 'Alice')")

	reloaded, err := Load(dir, "mydb", DefaultOptions())
	require.NoError(t, err)

	rows := mustExec(t, reloaded, "SELECT * FROM users WHERE id = 1")
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0]["name"].S)

	// save(load()) == save(current) byte-for-byte.
	assert.Equal(t, codec.Serialize(eng.tables), codec.Serialize(reloaded.tables))
}

func TestFailedStatementNotPersisted(t *testing.T) {
	dir := t.TempDir()
	eng, err := CreateDatabase(dir, "mydb", DefaultOptions())
	require.NoError(t, err)

	mustExec(t, eng, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)")
	mustExec(t, eng, "INSERT INTO users (id, name) VALUES (1, 'Alice')")
	execErr(t, eng, "INSERT INTO users (id, name) VALUES (1, 'Bob')")

	reloaded, err := Load(dir, "mydb", DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, reloaded.tables["users"].Rows, 1)
}

func TestIndexHintForce(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE t (a INT NOT NULL, b INT NOT NULL)")
	mustExec(t, e, "INSERT INTO t (a, b) VALUES (1, 10)")
	mustExec(t, e, "INSERT INTO t (a, b) VALUES (2, 20)")

	sel := ast.Select{
		TableName: "t",
		Columns:   []string{"*"},
		Where: []planner.Predicate{
			{Column: "a", Op: planner.Eq, Value: value.Int(1)},
		},
		Hint: planner.Hint{Mode: planner.HintForce, Indexes: []string{"idx_t_a"}},
	}
	rows, err := e.Execute(sel)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10), rows[0]["b"].I)

	// Forcing a nonexistent index surfaces InvalidIndexHint.
	sel.Hint.Indexes = []string{"ghost"}
	_, err = e.Execute(sel)
	assert.True(t, dberr.Is(err, dberr.InvalidIndexHint))
}

func TestNaNEqualityProbe(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE TABLE t (x FLOAT NOT NULL)")
	nan := math.NaN()
	_, err := e.Execute(ast.Insert{TableName: "t", Columns: []string{"x"}, Values: []value.Value{value.Float(nan)}})
	require.NoError(t, err)
	_, err = e.Execute(ast.Insert{TableName: "t", Columns: []string{"x"}, Values: []value.Value{value.Float(1.0)}})
	require.NoError(t, err)

	sel := ast.Select{
		TableName: "t",
		Columns:   []string{"*"},
		Where:     []planner.Predicate{{Column: "x", Op: planner.Eq, Value: value.Float(nan)}},
	}
	rows, err := e.Execute(sel)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, math.IsNaN(rows[0]["x"].F))
}

func TestCreateTableDuplicateColumns(t *testing.T) {
	e := newTestEngine(t)
	err := execErr(t, e, "CREATE TABLE t (a INT, a INT)")
	assert.True(t, dberr.Is(err, dberr.ParseError))
}

func TestCreateDatabaseStatementIdempotent(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, "CREATE DATABASE testdb")

	err := execErr(t, e, "CREATE DATABASE other")
	assert.True(t, dberr.Is(err, dberr.ParseError))
}
