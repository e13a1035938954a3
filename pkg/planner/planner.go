package planner

import (
	tegerrors "github.com/tegdb/tegdb/pkg/errors"
	"github.com/tegdb/tegdb/pkg/rowcodec"
	"github.com/tegdb/tegdb/pkg/storage"
)

// Planner converts statements into execution plans, consulting catalog to
// learn each table's declared PK column order (spec §4.7).
type Planner struct {
	catalog *storage.Catalog
}

// New builds a Planner backed by catalog.
func New(catalog *storage.Catalog) *Planner {
	return &Planner{catalog: catalog}
}

// Plan chooses an ExecutionPlan for stmt.
func (p *Planner) Plan(stmt Statement) (ExecutionPlan, error) {
	switch s := stmt.(type) {
	case *SelectStatement:
		return p.planSelect(s)
	case *InsertStatement:
		return &InsertPlan{Table: s.Table, Columns: s.Columns, Rows: s.Rows}, nil
	case *UpdateStatement:
		source, err := p.planAccess(s.Table, s.Where, nil, nil)
		if err != nil {
			return nil, err
		}
		return &UpdatePlan{Source: source, Assignments: s.Assignments}, nil
	case *DeleteStatement:
		source, err := p.planAccess(s.Table, s.Where, nil, nil)
		if err != nil {
			return nil, err
		}
		return &DeletePlan{Source: source}, nil
	case *CreateTableStatement:
		return &CreateTablePlan{Table: s.Table, Columns: s.Columns}, nil
	case *DropTableStatement:
		return &DropTablePlan{Table: s.Table}, nil
	case *BeginStatement:
		return &BeginPlan{}, nil
	case *CommitStatement:
		return &CommitPlan{}, nil
	case *RollbackStatement:
		return &RollbackPlan{}, nil
	case *CreateIndexStatement:
		return &CreateIndexPlan{Table: s.Table, Index: s.Index}, nil
	case *DropIndexStatement:
		return &DropIndexPlan{Index: s.Index}, nil
	case *CreateExtensionStatement:
		return &CreateExtensionPlan{Name: s.Name}, nil
	case *DropExtensionStatement:
		return &DropExtensionPlan{Name: s.Name}, nil
	default:
		return nil, &tegerrors.ParseError{Message: "unrecognized statement shape"}
	}
}

// Explain returns the plan stmt would execute as, without executing it
// (SPEC_FULL.md item C.1 — not a SQL keyword, a plain Go method).
func (p *Planner) Explain(stmt Statement) (ExecutionPlan, error) {
	return p.Plan(stmt)
}

func (p *Planner) planSelect(s *SelectStatement) (ExecutionPlan, error) {
	return p.planAccess(s.Table, s.Where, s.Columns, s)
}

// planAccess implements spec §4.7's decision rule: inspect WHERE's
// top-level AND-conjuncts; if they bind PK columns in declaration order
// (all equalities -> PointLookup; equalities followed by one comparison ->
// RangeScan), choose the indexed plan, otherwise FullScan.
func (p *Planner) planAccess(table string, where Expr, projection []string, sel *SelectStatement) (ExecutionPlan, error) {
	schema, ok := p.catalog.Get(table)
	if !ok {
		return nil, &tegerrors.TableNotFoundError{Name: table}
	}
	pkCols := schema.PKColumns()

	conjuncts := flattenAnd(where)
	used := make([]bool, len(conjuncts))

	equalityPrefix := make([]Expr, 0, len(pkCols))
	var lower, upper Expr
	lowerInclusive, upperInclusive := false, false
	boundColumn := ""

	for i, pk := range pkCols {
		eqIdx, eqVal, found := findEquality(conjuncts, used, pk.Name)
		if found {
			used[eqIdx] = true
			equalityPrefix = append(equalityPrefix, eqVal)
			continue
		}

		// No equality on this column: look for a range bound on it
		// (the one comparison the decision rule allows after the
		// equality prefix), then stop descending PK columns.
		boundColumn = pk.Name
		lower, upper, lowerInclusive, upperInclusive = findRangeBound(conjuncts, used, pk.Name)
		_ = i
		break
	}

	// Contradiction check on literal bounds (spec §4.7 tie-break).
	if lower != nil && upper != nil {
		if contradicts(lower, lowerInclusive, upper, upperInclusive) {
			return &EmptyPlan{Table: table}, nil
		}
	}

	filter := residual(conjuncts, used)

	var limit *int
	var orderBy []OrderTerm
	if sel != nil {
		limit = sel.Limit
		orderBy = sel.OrderBy
	}

	switch {
	case len(equalityPrefix) == len(pkCols) && len(pkCols) > 0:
		return &PointLookupPlan{Table: table, PKValues: equalityPrefix, Filter: filter, Projection: projection}, nil
	case len(equalityPrefix) > 0 || lower != nil || upper != nil:
		_ = boundColumn
		return &RangeScanPlan{
			Table:          table,
			EqualityPrefix: equalityPrefix,
			Lower:          lower,
			Upper:          upper,
			LowerInclusive: lowerInclusive,
			UpperInclusive: upperInclusive,
			Filter:         filter,
			Projection:     projection,
			Limit:          limit,
			OrderBy:        orderBy,
		}, nil
	default:
		return &FullScanPlan{Table: table, Filter: filter, Projection: projection, Limit: limit, OrderBy: orderBy}, nil
	}
}

// flattenAnd splits e into its top-level AND-conjuncts. A nil expression
// yields no conjuncts; anything other than a chain of ANDs yields itself as
// a single conjunct (OR, for instance, is never decomposed — the whole
// subtree becomes a residual filter).
func flattenAnd(e Expr) []Expr {
	if e == nil {
		return nil
	}
	if b, ok := e.(BinaryExpr); ok && b.Op == OpAnd {
		return append(flattenAnd(b.Left), flattenAnd(b.Right)...)
	}
	return []Expr{e}
}

// findEquality looks for an unused conjunct of the form "column = value"
// (or "value = column") among conjuncts, returning its index and the other
// side's Expr.
func findEquality(conjuncts []Expr, used []bool, column string) (int, Expr, bool) {
	for i, c := range conjuncts {
		if used[i] {
			continue
		}
		if col, op, val, ok := asColumnComparison(c); ok && op == OpEq && col == column {
			return i, val, true
		}
	}
	return 0, nil, false
}

// findRangeBound collects a lower and/or upper bound on column from
// comparison and BETWEEN conjuncts, marking every conjunct it consumes as
// used. Multiple comparisons on the same column intersect: the tightest
// lower and tightest upper bound win when both are literals.
func findRangeBound(conjuncts []Expr, used []bool, column string) (lower, upper Expr, lowerInclusive, upperInclusive bool) {
	for i, c := range conjuncts {
		if used[i] {
			continue
		}
		if b, ok := c.(Between); ok {
			if col, ok := b.Target.(ColumnRef); ok && col.Name == column {
				used[i] = true
				lower, lowerInclusive = tighterLower(lower, lowerInclusive, b.Low, true)
				upper, upperInclusive = tighterUpper(upper, upperInclusive, b.High, true)
			}
			continue
		}
		col, op, val, ok := asColumnComparison(c)
		if !ok || col != column {
			continue
		}
		switch op {
		case OpGt:
			used[i] = true
			lower, lowerInclusive = tighterLower(lower, lowerInclusive, val, false)
		case OpGte:
			used[i] = true
			lower, lowerInclusive = tighterLower(lower, lowerInclusive, val, true)
		case OpLt:
			used[i] = true
			upper, upperInclusive = tighterUpper(upper, upperInclusive, val, false)
		case OpLte:
			used[i] = true
			upper, upperInclusive = tighterUpper(upper, upperInclusive, val, true)
		}
	}
	return
}

// tighterLower keeps whichever of the current and candidate lower bounds is
// numerically larger, when both are literals; otherwise the first bound
// found wins (params can't be intersected until bind time).
func tighterLower(cur Expr, curIncl bool, cand Expr, candIncl bool) (Expr, bool) {
	if cur == nil {
		return cand, candIncl
	}
	cn, cok := literalNumber(cur)
	nn, nok := literalNumber(cand)
	if cok && nok && nn > cn {
		return cand, candIncl
	}
	return cur, curIncl
}

func tighterUpper(cur Expr, curIncl bool, cand Expr, candIncl bool) (Expr, bool) {
	if cur == nil {
		return cand, candIncl
	}
	cn, cok := literalNumber(cur)
	nn, nok := literalNumber(cand)
	if cok && nok && nn < cn {
		return cand, candIncl
	}
	return cur, curIncl
}

func literalNumber(e Expr) (float64, bool) {
	lit, ok := e.(Literal)
	if !ok {
		return 0, false
	}
	switch lit.Value.Kind {
	case rowcodec.KindInt:
		return float64(lit.Value.Int), true
	case rowcodec.KindReal:
		return lit.Value.Real, true
	default:
		return 0, false
	}
}

// contradicts reports whether lower..upper (with their inclusivity flags)
// can never contain a value, when both bounds are literal numbers.
func contradicts(lower Expr, lowerIncl bool, upper Expr, upperIncl bool) bool {
	l, lok := literalNumber(lower)
	u, uok := literalNumber(upper)
	if !lok || !uok {
		return false
	}
	if l > u {
		return true
	}
	if l == u && !(lowerIncl && upperIncl) {
		return true
	}
	return false
}

// asColumnComparison recognizes "column OP literal-or-param" and its
// mirror "literal-or-param OP column", normalizing to the former by
// flipping the operator when the column is on the right.
func asColumnComparison(e Expr) (column string, op Op, value Expr, ok bool) {
	b, isBinary := e.(BinaryExpr)
	if !isBinary {
		return "", 0, nil, false
	}
	if !isComparison(b.Op) {
		return "", 0, nil, false
	}
	if col, isCol := b.Left.(ColumnRef); isCol {
		return col.Name, b.Op, b.Right, true
	}
	if col, isCol := b.Right.(ColumnRef); isCol {
		return col.Name, flip(b.Op), b.Left, true
	}
	return "", 0, nil, false
}

func isComparison(op Op) bool {
	switch op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return true
	default:
		return false
	}
}

// flip mirrors a comparison operator for "value OP column" -> "column OP' value".
func flip(op Op) Op {
	switch op {
	case OpLt:
		return OpGt
	case OpLte:
		return OpGte
	case OpGt:
		return OpLt
	case OpGte:
		return OpLte
	default:
		return op
	}
}

// residual rebuilds an AND-tree over every conjunct not consumed into the
// chosen access method, for the executor's in-row filter step. Returns nil
// when every conjunct was consumed.
func residual(conjuncts []Expr, used []bool) Expr {
	var out Expr
	for i, c := range conjuncts {
		if used[i] {
			continue
		}
		if out == nil {
			out = c
		} else {
			out = BinaryExpr{Op: OpAnd, Left: out, Right: c}
		}
	}
	return out
}
