package executor_test

import (
	"path/filepath"
	"testing"

	"github.com/tegdb/tegdb/pkg/executor"
	"github.com/tegdb/tegdb/pkg/planner"
	"github.com/tegdb/tegdb/pkg/rowcodec"
	"github.com/tegdb/tegdb/pkg/storage"
)

func testSetup(t *testing.T) (*storage.Engine, *planner.Planner, *executor.Executor) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.teg")
	e, err := storage.Open(path, storage.DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, planner.New(e.Catalog()), executor.New(e)
}

func createAccounts(t *testing.T, e *storage.Engine, ex *executor.Executor) {
	t.Helper()
	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	plan := &planner.CreateTablePlan{
		Table: "accounts",
		Columns: []storage.Column{
			{Name: "id", Type: storage.TypeInteger, Constraints: []storage.Constraint{storage.ConstraintPrimaryKey}},
			{Name: "org", Type: storage.TypeInteger, Constraints: []storage.Constraint{storage.ConstraintPrimaryKey}},
			{Name: "email", Type: storage.TypeText, TextLength: 64, Constraints: []storage.Constraint{storage.ConstraintUnique}},
			{Name: "balance", Type: storage.TypeReal},
		},
	}
	if _, err := ex.Execute(plan, txn, nil); err != nil {
		t.Fatalf("execCreateTable: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func insertAccount(t *testing.T, e *storage.Engine, ex *executor.Executor, id, org int64, email string, balance float64) {
	t.Helper()
	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	plan := &planner.InsertPlan{
		Table:   "accounts",
		Columns: []string{"id", "org", "email", "balance"},
		Rows: [][]planner.Expr{{
			planner.Literal{Value: rowcodec.Int(id)},
			planner.Literal{Value: rowcodec.Int(org)},
			planner.Literal{Value: rowcodec.Text(email)},
			planner.Literal{Value: rowcodec.Real(balance)},
		}},
	}
	if _, err := ex.Execute(plan, txn, nil); err != nil {
		t.Fatalf("execInsert: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func col(row executor.Row, name string) (rowcodec.Value, bool) {
	for i, c := range row.Columns {
		if c == name {
			return row.Values[i], true
		}
	}
	return rowcodec.Value{}, false
}

func TestInsertAndPointLookup(t *testing.T) {
	e, p, ex := testSetup(t)
	createAccounts(t, e, ex)
	insertAccount(t, e, ex, 1, 7, "alice@example.com", 100.5)

	where := planner.BinaryExpr{
		Op:   planner.OpAnd,
		Left: planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "id"}, Right: planner.Literal{Value: rowcodec.Int(1)}},
		Right: planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "org"}, Right: planner.Literal{Value: rowcodec.Int(7)}},
	}
	plan, err := p.Plan(&planner.SelectStatement{Table: "accounts", Where: where})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, ok := plan.(*planner.PointLookupPlan); !ok {
		t.Fatalf("expected PointLookupPlan, got %T", plan)
	}

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	result, err := ex.Execute(plan, txn, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	email, ok := col(result.Rows[0], "email")
	if !ok || string(email.Bytes) != "alice@example.com" {
		t.Fatalf("unexpected email column: %v %v", ok, email)
	}
}

func TestRangeScanOverCompositePK(t *testing.T) {
	e, p, ex := testSetup(t)
	createAccounts(t, e, ex)
	insertAccount(t, e, ex, 1, 7, "a@example.com", 10)
	insertAccount(t, e, ex, 2, 7, "b@example.com", 20)
	insertAccount(t, e, ex, 3, 7, "c@example.com", 30)
	insertAccount(t, e, ex, 1, 9, "d@example.com", 40)

	// id is the first PK column, so "id = 1" is the equality prefix; org is
	// the second PK column and carries the range bound.
	where := planner.BinaryExpr{
		Op:   planner.OpAnd,
		Left: planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "id"}, Right: planner.Literal{Value: rowcodec.Int(1)}},
		Right: planner.BinaryExpr{Op: planner.OpGt, Left: planner.ColumnRef{Name: "org"}, Right: planner.Literal{Value: rowcodec.Int(7)}},
	}

	plan, err := p.Plan(&planner.SelectStatement{Table: "accounts", Where: where})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, ok := plan.(*planner.RangeScanPlan); !ok {
		t.Fatalf("expected RangeScanPlan, got %T", plan)
	}

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	result, err := ex.Execute(plan, txn, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Only the (id=1, org=9) row satisfies both id=1 and org>7.
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row (id=1, org=9), got %d", len(result.Rows))
	}
	org, ok := col(result.Rows[0], "org")
	if !ok || org.Int != 9 {
		t.Fatalf("expected the matched row to have org=9, got %v", org)
	}
}

func TestFullScanWithResidualFilter(t *testing.T) {
	e, p, ex := testSetup(t)
	createAccounts(t, e, ex)
	insertAccount(t, e, ex, 1, 7, "a@example.com", 10)
	insertAccount(t, e, ex, 2, 7, "b@example.com", 20)
	insertAccount(t, e, ex, 3, 7, "c@example.com", 30)

	where := planner.BinaryExpr{Op: planner.OpGt, Left: planner.ColumnRef{Name: "balance"}, Right: planner.Literal{Value: rowcodec.Real(15)}}
	plan, err := p.Plan(&planner.SelectStatement{Table: "accounts", Where: where})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, ok := plan.(*planner.FullScanPlan); !ok {
		t.Fatalf("expected FullScanPlan, got %T", plan)
	}

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	result, err := ex.Execute(plan, txn, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows with balance > 15, got %d", len(result.Rows))
	}
}

func TestLimitStopsEarlyWithoutOrderBy(t *testing.T) {
	e, p, ex := testSetup(t)
	createAccounts(t, e, ex)
	insertAccount(t, e, ex, 1, 7, "a@example.com", 10)
	insertAccount(t, e, ex, 2, 7, "b@example.com", 20)
	insertAccount(t, e, ex, 3, 7, "c@example.com", 30)

	limit := 2
	plan, err := p.Plan(&planner.SelectStatement{Table: "accounts", Limit: &limit})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	result, err := ex.Execute(plan, txn, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected LIMIT 2 to cap the result at 2 rows, got %d", len(result.Rows))
	}
}

func TestOrderByBuffersAndSorts(t *testing.T) {
	e, p, ex := testSetup(t)
	createAccounts(t, e, ex)
	insertAccount(t, e, ex, 1, 7, "a@example.com", 30)
	insertAccount(t, e, ex, 2, 7, "b@example.com", 10)
	insertAccount(t, e, ex, 3, 7, "c@example.com", 20)

	plan, err := p.Plan(&planner.SelectStatement{
		Table:   "accounts",
		OrderBy: []planner.OrderTerm{{Column: "balance"}},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	result, err := ex.Execute(plan, txn, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(result.Rows))
	}
	var balances []float64
	for _, row := range result.Rows {
		v, ok := col(row, "balance")
		if !ok {
			t.Fatalf("missing balance column")
		}
		balances = append(balances, v.Real)
	}
	if balances[0] != 10 || balances[1] != 20 || balances[2] != 30 {
		t.Fatalf("expected ascending balance order, got %v", balances)
	}
}

func TestUpdateNonPKColumn(t *testing.T) {
	e, p, ex := testSetup(t)
	createAccounts(t, e, ex)
	insertAccount(t, e, ex, 1, 7, "a@example.com", 10)

	where := planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "id"}, Right: planner.Literal{Value: rowcodec.Int(1)}}
	stmt := &planner.UpdateStatement{
		Table:       "accounts",
		Assignments: []planner.Assignment{{Column: "balance", Value: planner.Literal{Value: rowcodec.Real(99)}}},
		Where:       where,
	}
	plan, err := p.Plan(stmt)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	result, err := ex.Execute(plan, txn, nil)
	if err != nil {
		t.Fatalf("Execute UPDATE: %v", err)
	}
	if result.RowsAffected != 1 {
		t.Fatalf("expected 1 row affected, got %d", result.RowsAffected)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	selectPlan, err := p.Plan(&planner.SelectStatement{Table: "accounts", Where: where})
	if err != nil {
		t.Fatalf("Plan select: %v", err)
	}
	txn2, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn2.Drop()
	sel, err := ex.Execute(selectPlan, txn2, nil)
	if err != nil {
		t.Fatalf("Execute select: %v", err)
	}
	balance, ok := col(sel.Rows[0], "balance")
	if !ok || balance.Real != 99 {
		t.Fatalf("expected updated balance 99, got %v", balance)
	}
}

func TestUpdateChangingPKColumnRejectsDuplicate(t *testing.T) {
	e, p, ex := testSetup(t)
	createAccounts(t, e, ex)
	insertAccount(t, e, ex, 1, 7, "a@example.com", 10)
	insertAccount(t, e, ex, 2, 7, "b@example.com", 20)

	where := planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "id"}, Right: planner.Literal{Value: rowcodec.Int(1)}}
	stmt := &planner.UpdateStatement{
		Table:       "accounts",
		Assignments: []planner.Assignment{{Column: "id", Value: planner.Literal{Value: rowcodec.Int(2)}}},
		Where:       where,
	}
	plan, err := p.Plan(stmt)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	if _, err := ex.Execute(plan, txn, nil); err == nil {
		t.Fatalf("expected updating id to a colliding value to fail")
	}
}

func TestDelete(t *testing.T) {
	e, p, ex := testSetup(t)
	createAccounts(t, e, ex)
	insertAccount(t, e, ex, 1, 7, "a@example.com", 10)
	insertAccount(t, e, ex, 2, 7, "b@example.com", 20)

	where := planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "id"}, Right: planner.Literal{Value: rowcodec.Int(1)}}
	plan, err := p.Plan(&planner.DeleteStatement{Table: "accounts", Where: where})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	result, err := ex.Execute(plan, txn, nil)
	if err != nil {
		t.Fatalf("Execute DELETE: %v", err)
	}
	if result.RowsAffected != 1 {
		t.Fatalf("expected 1 row affected, got %d", result.RowsAffected)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	fullScanPlan, err := p.Plan(&planner.SelectStatement{Table: "accounts"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	txn2, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn2.Drop()
	sel, err := ex.Execute(fullScanPlan, txn2, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(sel.Rows) != 1 {
		t.Fatalf("expected 1 remaining row, got %d", len(sel.Rows))
	}
}

func TestUniqueConstraintViolation(t *testing.T) {
	e, _, ex := testSetup(t)
	createAccounts(t, e, ex)
	insertAccount(t, e, ex, 1, 7, "dup@example.com", 10)

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	plan := &planner.InsertPlan{
		Table:   "accounts",
		Columns: []string{"id", "org", "email", "balance"},
		Rows: [][]planner.Expr{{
			planner.Literal{Value: rowcodec.Int(2)},
			planner.Literal{Value: rowcodec.Int(7)},
			planner.Literal{Value: rowcodec.Text("dup@example.com")},
			planner.Literal{Value: rowcodec.Real(5)},
		}},
	}
	if _, err := ex.Execute(plan, txn, nil); err == nil {
		t.Fatalf("expected a UNIQUE constraint violation")
	}
}

func TestArithmeticDivisionByZero(t *testing.T) {
	e, _, ex := testSetup(t)
	createAccounts(t, e, ex)

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	plan := &planner.InsertPlan{
		Table:   "accounts",
		Columns: []string{"id", "org", "email", "balance"},
		Rows: [][]planner.Expr{{
			planner.Literal{Value: rowcodec.Int(1)},
			planner.Literal{Value: rowcodec.Int(7)},
			planner.Literal{Value: rowcodec.Text("z@example.com")},
			planner.BinaryExpr{Op: planner.OpDiv, Left: planner.Literal{Value: rowcodec.Real(10)}, Right: planner.Literal{Value: rowcodec.Real(0)}},
		}},
	}
	if _, err := ex.Execute(plan, txn, nil); err == nil {
		t.Fatalf("expected division by zero to fail")
	}
}

func TestArithmeticIntRealPromotion(t *testing.T) {
	e, _, ex := testSetup(t)
	createAccounts(t, e, ex)

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	plan := &planner.InsertPlan{
		Table:   "accounts",
		Columns: []string{"id", "org", "email", "balance"},
		Rows: [][]planner.Expr{{
			planner.Literal{Value: rowcodec.Int(1)},
			planner.Literal{Value: rowcodec.Int(7)},
			planner.Literal{Value: rowcodec.Text("p@example.com")},
			planner.BinaryExpr{Op: planner.OpAdd, Left: planner.Literal{Value: rowcodec.Int(10)}, Right: planner.Literal{Value: rowcodec.Real(0.5)}},
		}},
	}
	if _, err := ex.Execute(plan, txn, nil); err != nil {
		t.Fatalf("expected int+real to promote to REAL, got error: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestBetweenAndLike(t *testing.T) {
	e, p, ex := testSetup(t)
	createAccounts(t, e, ex)
	insertAccount(t, e, ex, 1, 7, "alice@example.com", 10)
	insertAccount(t, e, ex, 2, 7, "bob@example.com", 20)
	insertAccount(t, e, ex, 3, 7, "carol@example.com", 30)

	between := planner.Between{
		Target: planner.ColumnRef{Name: "balance"},
		Low:    planner.Literal{Value: rowcodec.Real(15)},
		High:   planner.Literal{Value: rowcodec.Real(25)},
	}
	plan, err := p.Plan(&planner.SelectStatement{Table: "accounts", Where: between})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	result, err := ex.Execute(plan, txn, nil)
	txn.Drop()
	if err != nil {
		t.Fatalf("Execute BETWEEN: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row in [15,25], got %d", len(result.Rows))
	}

	like := planner.Like{Target: planner.ColumnRef{Name: "email"}, Pattern: planner.Literal{Value: rowcodec.Text("%@example.com")}}
	likePlan, err := p.Plan(&planner.SelectStatement{Table: "accounts", Where: like})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	txn2, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn2.Drop()
	likeResult, err := ex.Execute(likePlan, txn2, nil)
	if err != nil {
		t.Fatalf("Execute LIKE: %v", err)
	}
	if len(likeResult.Rows) != 3 {
		t.Fatalf("expected all 3 rows to match %%@example.com, got %d", len(likeResult.Rows))
	}
}

func TestNullComparisonIsUnknown(t *testing.T) {
	e, _, ex := testSetup(t)

	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn.Drop()

	plan := &planner.CreateTablePlan{
		Table: "widgets",
		Columns: []storage.Column{
			{Name: "id", Type: storage.TypeInteger, Constraints: []storage.Constraint{storage.ConstraintPrimaryKey}},
			{Name: "tag", Type: storage.TypeText, TextLength: 16},
		},
	}
	if _, err := ex.Execute(plan, txn, nil); err != nil {
		t.Fatalf("execCreateTable: %v", err)
	}

	insertPlan := &planner.InsertPlan{
		Table:   "widgets",
		Columns: []string{"id"},
		Rows:    [][]planner.Expr{{planner.Literal{Value: rowcodec.Int(1)}}},
	}
	if _, err := ex.Execute(insertPlan, txn, nil); err != nil {
		t.Fatalf("execInsert: %v", err)
	}

	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	p := planner.New(e.Catalog())
	where := planner.BinaryExpr{Op: planner.OpEq, Left: planner.ColumnRef{Name: "tag"}, Right: planner.Literal{Value: rowcodec.Text("x")}}
	selectPlan, err := p.Plan(&planner.SelectStatement{Table: "widgets", Where: where})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	txn2, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer txn2.Drop()

	result, err := ex.Execute(selectPlan, txn2, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// tag is NULL for the inserted row; NULL = 'x' is UNKNOWN, treated as
	// false, so the row must not match.
	if len(result.Rows) != 0 {
		t.Fatalf("expected NULL tag to fail the equality comparison, got %d rows", len(result.Rows))
	}
}
