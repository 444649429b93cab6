// Package scanner implements MirseoDB's chunked table scanner:
// single-threaded row iteration with a Bloom pre-filter, LIMIT/OFFSET, a
// memory ceiling, and early termination.
package scanner

import (
	"time"

	"github.com/MirseoDB/mirseodb/internal/bloomset"
	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/value"
)

// Op mirrors planner.Op without importing the planner package, keeping
// the scanner usable standalone (it only needs to evaluate predicates,
// not choose plans).
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Predicate is a single WHERE clause the scanner evaluates row by row.
type Predicate struct {
	Column string
	Op     Op
	Value  value.Value
}

// Matches reports whether row satisfies p.
func (p Predicate) Matches(row value.Row) bool {
	v, ok := row[p.Column]
	if !ok {
		return false
	}
	cmp := value.Cmp(v, p.Value)
	sameVariant := v.Tag == p.Value.Tag
	switch p.Op {
	case Eq:
		return sameVariant && cmp == value.Equal
	case Ne:
		return !sameVariant || cmp != value.Equal
	case Lt:
		return sameVariant && cmp == value.Less
	case Le:
		return sameVariant && cmp != value.Greater
	case Gt:
		return sameVariant && cmp == value.Greater
	case Ge:
		return sameVariant && cmp != value.Less
	default:
		return false
	}
}

// Options configures one scan.
type Options struct {
	ChunkSize        int
	MaxMemoryBytes   int64
	EarlyTermination bool
}

// DefaultOptions returns sane scan defaults: a thousand rows per chunk,
// a generous but bounded memory ceiling, early termination on.
func DefaultOptions() Options {
	return Options{ChunkSize: 1000, MaxMemoryBytes: 64 * 1024 * 1024, EarlyTermination: true}
}

// Stats accumulates scan diagnostics.
type Stats struct {
	Scanned          int
	Skipped          int
	BloomHits        int
	BloomMisses      int
	ChunksProcessed  int
	WallClock        time.Duration
	EarlyTerminated  bool
}

// Request describes one scan invocation.
type Request struct {
	Rows       []value.Row
	Bloom      *bloomset.ColumnSet
	Predicates []Predicate
	Columns    []string // projection; ["*"] means every column
	Limit      *int
	Offset     *int
	Options    Options
}

// Scan streams rows in chunks, applying the Bloom pre-filter and
// predicates, honoring LIMIT/OFFSET, and failing with QueryTooComplex if
// the estimated in-flight memory for a chunk exceeds the ceiling.
func Scan(req Request) ([]value.Row, *Stats, error) {
	start := time.Now()
	stats := &Stats{}

	if bloomSkip(req) {
		stats.BloomMisses++
		stats.WallClock = time.Since(start)
		return []value.Row{}, stats, nil
	}

	opts := req.Options
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions().ChunkSize
	}
	if opts.MaxMemoryBytes <= 0 {
		opts.MaxMemoryBytes = DefaultOptions().MaxMemoryBytes
	}

	limit := -1
	if req.Limit != nil {
		limit = *req.Limit
	}
	offsetRemaining := 0
	if req.Offset != nil {
		offsetRemaining = *req.Offset
	}

	var out []value.Row
	if limit == 0 {
		stats.WallClock = time.Since(start)
		return []value.Row{}, stats, nil
	}

	for chunkStart := 0; chunkStart < len(req.Rows); chunkStart += opts.ChunkSize {
		chunkEnd := chunkStart + opts.ChunkSize
		if chunkEnd > len(req.Rows) {
			chunkEnd = len(req.Rows)
		}
		chunk := req.Rows[chunkStart:chunkEnd]

		if estimateMemory(chunk) > opts.MaxMemoryBytes {
			return nil, stats, dberr.New(dberr.QueryTooComplex, "chunk memory estimate exceeds max_memory_bytes (%d)", opts.MaxMemoryBytes)
		}
		stats.ChunksProcessed++

		for _, row := range chunk {
			stats.Scanned++
			if !matchesAll(row, req.Predicates, req.Bloom, stats) {
				continue
			}
			if offsetRemaining > 0 {
				offsetRemaining--
				stats.Skipped++
				continue
			}
			if limit >= 0 && len(out) >= limit {
				// LIMIT reached; without early termination the scan
				// still walks the remaining rows for statistics but
				// never emits past the limit.
				continue
			}
			out = append(out, project(row, req.Columns))
			if limit >= 0 && len(out) >= limit && opts.EarlyTermination {
				stats.EarlyTerminated = true
				stats.WallClock = time.Since(start)
				return out, stats, nil
			}
		}
	}

	stats.WallClock = time.Since(start)
	if out == nil {
		out = []value.Row{}
	}
	return out, stats, nil
}

// bloomSkip reports whether any equality predicate's column has a Bloom
// filter that definitively rules the probe value out, letting the scanner
// return empty without touching a single row.
func bloomSkip(req Request) bool {
	if req.Bloom == nil {
		return false
	}
	for _, p := range req.Predicates {
		if p.Op == Eq && req.Bloom.CanSkipScan(p.Column, p.Value) {
			return true
		}
	}
	return false
}

func matchesAll(row value.Row, predicates []Predicate, bloom *bloomset.ColumnSet, stats *Stats) bool {
	for _, p := range predicates {
		if p.Op == Eq && bloom != nil {
			if bloom.CanSkipScan(p.Column, p.Value) {
				stats.BloomMisses++
				return false
			}
			stats.BloomHits++
		}
		if !p.Matches(row) {
			return false
		}
	}
	return true
}

// estimateMemory sums a rough per-row size (used only to decide whether a
// chunk breaches max_memory_bytes, not as an exact accounting figure).
func estimateMemory(rows []value.Row) int64 {
	var total int64
	for _, row := range rows {
		total += rowSize(row)
	}
	return total
}

func rowSize(row value.Row) int64 {
	var size int64
	for col, v := range row {
		size += int64(len(col)) + valueSize(v) + 16 // map entry overhead estimate
	}
	return size
}

func valueSize(v value.Value) int64 {
	switch v.Tag {
	case value.TypeText:
		return int64(len(v.S))
	default:
		return 8
	}
}

// project returns a new row containing only columns, or the full row if
// columns is exactly ["*"].
func project(row value.Row, columns []string) value.Row {
	if len(columns) == 1 && columns[0] == "*" {
		return row.Clone()
	}
	out := make(value.Row, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}
