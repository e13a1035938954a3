package planner_test

import (
	"path/filepath"
	"testing"

	"github.com/tegdb/tegdb/pkg/planner"
	"github.com/tegdb/tegdb/pkg/rowcodec"
	"github.com/tegdb/tegdb/pkg/storage"
)

func testPlanner(t *testing.T) (*planner.Planner, *storage.Engine) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.teg")
	e, err := storage.Open(path, storage.DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { e.Close() })

	schema, err := storage.NewTableSchema("users", []storage.Column{
		{Name: "id", Type: storage.TypeInteger, Constraints: []storage.Constraint{storage.ConstraintPrimaryKey}},
		{Name: "org", Type: storage.TypeInteger, Constraints: []storage.Constraint{storage.ConstraintPrimaryKey}},
		{Name: "name", Type: storage.TypeText, TextLength: 64},
	})
	if err != nil {
		t.Fatalf("NewTableSchema: %v", err)
	}
	e.Catalog().Put(schema)

	return planner.New(e.Catalog()), e
}

func intLit(v int64) planner.Expr {
	return planner.Literal{Value: rowcodec.Int(v)}
}

func TestPlanSelectAllEqualitiesIsPointLookup(t *testing.T) {
	p, _ := testPlanner(t)

	where := planner.BinaryExpr{
		Op:   planner.OpAnd,
		Left: planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "id"}, Right: intLit(1)},
		Right: planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "org"}, Right: intLit(2)},
	}

	plan, err := p.Plan(&planner.SelectStatement{Table: "users", Where: where})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, ok := plan.(*planner.PointLookupPlan); !ok {
		t.Fatalf("expected PointLookupPlan, got %T", plan)
	}
}

func TestPlanSelectPrefixEqualityPlusRangeIsRangeScan(t *testing.T) {
	p, _ := testPlanner(t)

	where := planner.BinaryExpr{
		Op:   planner.OpAnd,
		Left: planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "id"}, Right: intLit(1)},
		Right: planner.BinaryExpr{Op: planner.OpGt, Left: planner.ColumnRef{Name: "org"}, Right: intLit(5)},
	}

	plan, err := p.Plan(&planner.SelectStatement{Table: "users", Where: where})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	rs, ok := plan.(*planner.RangeScanPlan)
	if !ok {
		t.Fatalf("expected RangeScanPlan, got %T", plan)
	}
	if len(rs.EqualityPrefix) != 1 {
		t.Fatalf("expected one equality-bound PK column, got %d", len(rs.EqualityPrefix))
	}
	if rs.Lower == nil || rs.LowerInclusive {
		t.Fatalf("expected an exclusive lower bound")
	}
}

func TestPlanSelectWithNoPKPredicateIsFullScan(t *testing.T) {
	p, _ := testPlanner(t)

	where := planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "name"}, Right: planner.Literal{Value: rowcodec.Text("alice")}}

	plan, err := p.Plan(&planner.SelectStatement{Table: "users", Where: where})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	fs, ok := plan.(*planner.FullScanPlan)
	if !ok {
		t.Fatalf("expected FullScanPlan, got %T", plan)
	}
	if fs.Filter == nil {
		t.Fatalf("expected the name predicate to survive as a residual filter")
	}
}

func TestPlanSelectContradictoryRangeIsEmptyPlan(t *testing.T) {
	p, _ := testPlanner(t)

	where := planner.BinaryExpr{
		Op:   planner.OpAnd,
		Left: planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "id"}, Right: intLit(1)},
		Right: planner.BinaryExpr{
			Op: planner.OpAnd,
			Left: planner.BinaryExpr{Op: planner.OpGt, Left: planner.ColumnRef{Name: "org"}, Right: intLit(10)},
			Right: planner.BinaryExpr{Op: planner.OpLt, Left: planner.ColumnRef{Name: "org"}, Right: intLit(5)},
		},
	}

	plan, err := p.Plan(&planner.SelectStatement{Table: "users", Where: where})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, ok := plan.(*planner.EmptyPlan); !ok {
		t.Fatalf("expected EmptyPlan for a contradictory range, got %T", plan)
	}
}

func TestPlanUnknownTableFails(t *testing.T) {
	p, _ := testPlanner(t)

	if _, err := p.Plan(&planner.SelectStatement{Table: "missing"}); err == nil {
		t.Fatalf("expected an error for an unknown table")
	}
}

func TestExplainMatchesPlan(t *testing.T) {
	p, _ := testPlanner(t)

	stmt := &planner.SelectStatement{Table: "users"}
	explained, err := p.Explain(stmt)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if _, ok := explained.(*planner.FullScanPlan); !ok {
		t.Fatalf("expected FullScanPlan from Explain, got %T", explained)
	}
}
