package engine

import (
	"github.com/MirseoDB/mirseodb/internal/planner"
	"github.com/MirseoDB/mirseodb/internal/scanner"
	"github.com/MirseoDB/mirseodb/internal/table"
)

func toScannerPredicates(preds []planner.Predicate) []scanner.Predicate {
	out := make([]scanner.Predicate, len(preds))
	for i, p := range preds {
		out[i] = scanner.Predicate{Column: p.Column, Op: scanner.Op(p.Op), Value: p.Value}
	}
	return out
}

// matchesAllPredicates re-verifies every predicate against row: an
// index-narrowed candidate set is never trusted blindly, guarding
// against stale index statistics.
func matchesAllPredicates(row table.Row, preds []planner.Predicate) bool {
	for _, p := range preds {
		sp := scanner.Predicate{Column: p.Column, Op: scanner.Op(p.Op), Value: p.Value}
		if !sp.Matches(row) {
			return false
		}
	}
	return true
}

func applyLimitOffset(rows []table.Row, limit, offset *int) []table.Row {
	start := 0
	if offset != nil && *offset > 0 {
		start = *offset
	}
	if start >= len(rows) {
		return nil
	}
	rows = rows[start:]
	if limit != nil && *limit >= 0 && *limit < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}

func projectRows(rows []table.Row, columns []string) []table.Row {
	if len(columns) == 1 && columns[0] == "*" {
		return rows
	}
	out := make([]table.Row, len(rows))
	for i, row := range rows {
		projected := make(table.Row, len(columns))
		for _, c := range columns {
			if v, ok := row[c]; ok {
				projected[c] = v
			}
		}
		out[i] = projected
	}
	return out
}
