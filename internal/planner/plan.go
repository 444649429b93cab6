// Package planner implements MirseoDB's cost-based query planner: it
// maps a WHERE predicate list and optional index hint to one of
// {IndexScan, CompositeIndexScan, IndexIntersection, FullTableScan}.
package planner

import (
	"math"
	"sort"

	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/index"
	"github.com/MirseoDB/mirseodb/internal/logging"
	"github.com/MirseoDB/mirseodb/internal/value"
)

// Op is a comparison operator accepted in a WHERE predicate.
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Predicate is one `column op value` clause.
type Predicate struct {
	Column string
	Op     Op
	Value  value.Value
}

// HintMode selects how a caller-supplied IndexHint constrains the planner.
type HintMode int

const (
	HintNone HintMode = iota
	HintUse
	HintForce
	HintIgnore
)

// Hint is a caller-supplied preference over a set of index names.
type Hint struct {
	Mode    HintMode
	Indexes []string
}

// PlanKind identifies the chosen execution strategy.
type PlanKind int

const (
	KindFullScan PlanKind = iota
	KindIndexScan
	KindCompositeIndexScan
	KindIntersection
)

func (k PlanKind) String() string {
	switch k {
	case KindFullScan:
		return "FullTableScan"
	case KindIndexScan:
		return "IndexScan"
	case KindCompositeIndexScan:
		return "CompositeIndexScan"
	case KindIntersection:
		return "IndexIntersection"
	default:
		return "Unknown"
	}
}

// Plan is the planner's chosen strategy plus its estimated cost and the
// index names it selected.
type Plan struct {
	Kind       PlanKind
	Cost       float64
	IndexNames []string
	// Composite is set only for KindCompositeIndexScan.
	Composite *index.CompositeIndex
	// CompositePrefix holds the equality-predicate values probed against
	// Composite, in Composite.Columns order; set only alongside Composite.
	CompositePrefix []value.Value
	// Single holds one {predicate, index} pair per chosen single-column
	// index, used for IndexScan and IndexIntersection.
	Single []SingleIndexChoice
}

// SingleIndexChoice pairs a predicate with the index chosen to serve it.
type SingleIndexChoice struct {
	Predicate Predicate
	Index     *index.BTreeIndex
}

// Costs holds the planner's cost-model constants.
type Costs struct {
	TableScan       float64
	IndexScanBase   float64
	CompositeIndex  float64
	Intersection    float64
}

// DefaultCosts returns the stock cost constants.
func DefaultCosts() Costs {
	return Costs{TableScan: 10.0, IndexScanBase: 1.0, CompositeIndex: 0.8, Intersection: 5.0}
}

var log = logging.GetLogger("planner")

// Choose selects a plan for the given predicates against idxMgr, honoring
// hint and consulting stats for single-column index costing.
func Choose(predicates []Predicate, idxMgr *index.Manager, hint Hint, stats *Stats, costs Costs) (*Plan, error) {
	plan, err := choose(predicates, idxMgr, hint, stats, costs)
	if err == nil {
		log.Debug("plan chosen", "kind", plan.Kind.String(), "cost", plan.Cost, "indexes", plan.IndexNames)
	}
	return plan, err
}

func choose(predicates []Predicate, idxMgr *index.Manager, hint Hint, stats *Stats, costs Costs) (*Plan, error) {
	if hint.Mode == HintForce {
		return forcedPlan(predicates, idxMgr, hint.Indexes, costs)
	}

	usable := predicates
	if hint.Mode == HintUse {
		usable = filterPredicatesByIndexNames(predicates, idxMgr, hint.Indexes, true)
	} else if hint.Mode == HintIgnore {
		usable = filterPredicatesByIndexNames(predicates, idxMgr, hint.Indexes, false)
		if len(usable) == 0 {
			return &Plan{Kind: KindFullScan, Cost: costs.TableScan}, nil
		}
	}

	if len(usable) == 0 {
		return &Plan{Kind: KindFullScan, Cost: costs.TableScan}, nil
	}

	if plan := bestComposite(usable, idxMgr, costs); plan != nil {
		return plan, nil
	}

	type candidate struct {
		pred  Predicate
		idx   *index.BTreeIndex
		cost  float64
		score float64
	}
	var candidates []candidate
	for _, p := range usable {
		idx := idxMgr.BestIndexForColumn(p.Column)
		if idx == nil {
			continue
		}
		sel := stats.Selectivity(idx.Name)
		accessCount := stats.AccessCount(idx.Name)
		cost := singleIndexCost(costs.IndexScanBase, sel, len(usable), accessCount)
		candidates = append(candidates, candidate{pred: p, idx: idx, cost: cost, score: stats.Score(idx.Name)})
	}

	if len(candidates) == 1 {
		c := candidates[0]
		return &Plan{
			Kind:       KindIndexScan,
			Cost:       c.cost,
			IndexNames: []string{c.idx.Name},
			Single:     []SingleIndexChoice{{Predicate: c.pred, Index: c.idx}},
		}, nil
	}

	if len(candidates) > 1 {
		// Tie-break: higher historical score first; else primary before
		// unique before plain; else first-defined (stable sort preserves
		// the order BestIndexForColumn/predicate iteration produced it).
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			return rank(candidates[i].idx) < rank(candidates[j].idx)
		})
		best := candidates[0]
		singleWins := true
		for _, c := range candidates[1:] {
			if c.cost < best.cost {
				singleWins = false
				break
			}
		}
		if singleWins {
			return &Plan{
				Kind:       KindIndexScan,
				Cost:       best.cost,
				IndexNames: []string{best.idx.Name},
				Single:     []SingleIndexChoice{{Predicate: best.pred, Index: best.idx}},
			}, nil
		}

		names := make([]string, len(candidates))
		single := make([]SingleIndexChoice, len(candidates))
		for i, c := range candidates {
			names[i] = c.idx.Name
			single[i] = SingleIndexChoice{Predicate: c.pred, Index: c.idx}
		}
		return &Plan{
			Kind:       KindIntersection,
			Cost:       costs.Intersection * float64(len(candidates)),
			IndexNames: names,
			Single:     single,
		}, nil
	}

	return &Plan{Kind: KindFullScan, Cost: costs.TableScan}, nil
}

func rank(idx *index.BTreeIndex) int {
	switch {
	case idx.IsPrimary:
		return 0
	case idx.IsUnique:
		return 1
	default:
		return 2
	}
}

// singleIndexCost:
// cost = base * (1 - selectivity) * clause_count / log10(access_count)
func singleIndexCost(base, selectivity float64, clauseCount int, accessCount uint64) float64 {
	denom := math.Log10(float64(accessCount))
	if accessCount <= 1 || denom <= 0 {
		denom = 1
	}
	return base * (1 - selectivity) * float64(clauseCount) / denom
}

// bestComposite scores each composite index as the sum over predicates
// of (10 - position) for prefix hits and 1 for non-prefix hits, picking
// the highest-scoring composite if any predicate matches its leading
// column.
func bestComposite(predicates []Predicate, idxMgr *index.Manager, costs Costs) *Plan {
	predByCol := make(map[string]Predicate, len(predicates))
	for _, p := range predicates {
		predByCol[p.Column] = p
	}

	var bestIdx *index.CompositeIndex
	bestScore := -1.0
	for _, ci := range idxMgr.AllComposites() {
		if _, ok := predByCol[ci.LeadingColumn()]; !ok {
			continue
		}
		score := 0.0
		for pos, col := range ci.Columns {
			if _, ok := predByCol[col]; ok {
				if pos < 10 {
					score += float64(10 - pos)
				} else {
					score += 1
				}
			}
		}
		if score > bestScore {
			bestScore = score
			bestIdx = ci
		}
	}
	if bestIdx == nil {
		return nil
	}

	// Determine the longest exact-match prefix of equality predicates for
	// a true prefix probe; non-equality or gapped predicates degrade to a
	// single-column probe on the leading column only, via FindPrefix with
	// the partial tuple still honoring the composite order.
	prefixVals := compositePrefixFromPredicates(bestIdx, predByCol)
	if len(prefixVals) == 0 {
		return nil
	}

	return &Plan{
		Kind:            KindCompositeIndexScan,
		Cost:            costs.CompositeIndex,
		IndexNames:      []string{bestIdx.Name},
		Composite:       bestIdx,
		CompositePrefix: prefixVals,
	}
}

// compositePrefixFromPredicates finds the longest leading run of ci's
// columns that have an equality predicate, for use as a FindPrefix probe.
func compositePrefixFromPredicates(ci *index.CompositeIndex, predByCol map[string]Predicate) []value.Value {
	var prefixVals []value.Value
	for _, col := range ci.Columns {
		p, ok := predByCol[col]
		if !ok || p.Op != Eq {
			break
		}
		prefixVals = append(prefixVals, p.Value)
	}
	return prefixVals
}

func forcedPlan(predicates []Predicate, idxMgr *index.Manager, names []string, costs Costs) (*Plan, error) {
	if len(names) == 0 {
		return nil, dberr.New(dberr.InvalidIndexHint, "force hint requires at least one index name")
	}
	predByCol := make(map[string]Predicate, len(predicates))
	for _, p := range predicates {
		predByCol[p.Column] = p
	}
	var single []SingleIndexChoice
	for _, name := range names {
		if ci := idxMgr.GetComposite(name); ci != nil {
			prefixVals := compositePrefixFromPredicates(ci, predByCol)
			return &Plan{Kind: KindCompositeIndexScan, Cost: 1.0, IndexNames: []string{name}, Composite: ci, CompositePrefix: prefixVals}, nil
		}
		bi := idxMgr.Get(name)
		if bi == nil {
			return nil, dberr.New(dberr.InvalidIndexHint, "forced index %q does not exist", name)
		}
		var pred Predicate
		found := false
		for _, p := range predicates {
			if p.Column == bi.ColumnName {
				pred = p
				found = true
				break
			}
		}
		if !found {
			return nil, dberr.New(dberr.InvalidIndexHint, "forced index %q has no matching predicate", name)
		}
		single = append(single, SingleIndexChoice{Predicate: pred, Index: bi})
	}
	kind := KindIndexScan
	if len(single) > 1 {
		kind = KindIntersection
	}
	names2 := make([]string, len(single))
	for i, s := range single {
		names2[i] = s.Index.Name
	}
	return &Plan{Kind: kind, Cost: 1.0, IndexNames: names2, Single: single}, nil
}

func filterPredicatesByIndexNames(predicates []Predicate, idxMgr *index.Manager, names []string, keep bool) []Predicate {
	named := make(map[string]bool, len(names))
	for _, n := range names {
		named[n] = true
	}
	var out []Predicate
	for _, p := range predicates {
		hasNamed := false
		for _, idx := range idxMgr.ForColumn(p.Column) {
			if named[idx.Name] {
				hasNamed = true
				break
			}
		}
		for _, ci := range idxMgr.CompositesLeadingWith(p.Column) {
			if named[ci.Name] {
				hasNamed = true
				break
			}
		}
		if hasNamed == keep {
			out = append(out, p)
		}
	}
	return out
}
