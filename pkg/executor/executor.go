// Package executor walks the plans pkg/planner produces against a
// storage.Engine/storage.Transaction, streaming rows with lazy partial
// decode, enforcing schema constraints on writes, and evaluating the
// arithmetic/comparison rules spec §4.8 defines (grounded on the teacher's
// pkg/query.ScanCondition's ShouldSeek/ShouldContinue/Matches discipline,
// generalized from a single typed index condition to a PK-prefix range).
package executor

import (
	"github.com/cockroachdb/errors"

	tegerrors "github.com/tegdb/tegdb/pkg/errors"
	"github.com/tegdb/tegdb/pkg/planner"
	"github.com/tegdb/tegdb/pkg/rowcodec"
	"github.com/tegdb/tegdb/pkg/storage"
)

// Row is one emitted SELECT result row.
type Row struct {
	Columns []string
	Values  []rowcodec.Value
}

// Result is the outcome of executing one plan.
type Result struct {
	Rows         []Row
	RowsAffected int
}

// Executor runs plans against one Engine's transaction.
type Executor struct {
	engine *storage.Engine
}

// New returns an Executor bound to engine's catalog for schema lookups.
func New(engine *storage.Engine) *Executor {
	return &Executor{engine: engine}
}

// Execute runs plan against txn, binding any Param nodes the plan carries
// to params (spec §4.7's prepared-statement contract: the plan is never
// re-derived, only its holes are filled).
func (ex *Executor) Execute(plan planner.ExecutionPlan, txn *storage.Transaction, params []rowcodec.Value) (Result, error) {
	switch p := plan.(type) {
	case *planner.PointLookupPlan:
		return ex.execSelectAccess(plan, txn, params)
	case *planner.RangeScanPlan:
		return ex.execSelectAccess(plan, txn, params)
	case *planner.FullScanPlan:
		return ex.execSelectAccess(plan, txn, params)
	case *planner.EmptyPlan:
		return Result{}, nil
	case *planner.InsertPlan:
		return ex.execInsert(p, txn, params)
	case *planner.UpdatePlan:
		return ex.execUpdate(p, txn, params)
	case *planner.DeletePlan:
		return ex.execDelete(p, txn, params)
	case *planner.CreateTablePlan:
		return ex.execCreateTable(p, txn)
	case *planner.DropTablePlan:
		return ex.execDropTable(p, txn)
	case *planner.CreateIndexPlan, *planner.DropIndexPlan:
		return Result{}, &tegerrors.SchemaError{Message: "secondary indexes are not supported"}
	case *planner.CreateExtensionPlan, *planner.DropExtensionPlan:
		return Result{}, &tegerrors.SchemaError{Message: "extensions are not supported"}
	default:
		return Result{}, errors.Newf("executor: plan type %T is not a row-level plan (transaction-control plans are handled by the database facade)", plan)
	}
}

// schemaFor looks up table's schema or fails with TableNotFoundError.
func (ex *Executor) schemaFor(table string) (*storage.TableSchema, error) {
	s, ok := ex.engine.Catalog().Get(table)
	if !ok {
		return nil, &tegerrors.TableNotFoundError{Name: table}
	}
	return s, nil
}
