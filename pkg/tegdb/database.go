// Package tegdb is the embedded-database library entry point (spec §6):
// open(path) → Database, plus execute/query/begin/prepare. It wires
// storage.Engine, planner.Planner and executor.Executor together the same
// way the teacher's StorageEngine wraps a begin-then-delegate-then-close
// transaction around single-call convenience methods (StorageEngine.Get,
// StorageEngine.Put) — generalized here from one key operation per call to
// one planned Statement per call.
package tegdb

import (
	"sync"

	tegerrors "github.com/tegdb/tegdb/pkg/errors"
	"github.com/tegdb/tegdb/pkg/executor"
	"github.com/tegdb/tegdb/pkg/planner"
	"github.com/tegdb/tegdb/pkg/rowcodec"
	"github.com/tegdb/tegdb/pkg/storage"
)

// Database is one open TegDB file plus its planner and executor.
type Database struct {
	engine   *storage.Engine
	planner  *planner.Planner
	executor *executor.Executor

	mu         sync.Mutex
	currentTxn *storage.Transaction // non-nil between an executed BEGIN and its COMMIT/ROLLBACK
}

// Open opens (or creates) the database file at path under opts.
func Open(path string, opts storage.Options) (*Database, error) {
	e, err := storage.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return &Database{
		engine:   e,
		planner:  planner.New(e.Catalog()),
		executor: executor.New(e),
	}, nil
}

// Close releases the underlying database file.
func (db *Database) Close() error {
	return db.engine.Close()
}

// Stats reports the engine's current size and compaction-pressure metrics
// (SPEC_FULL.md item C.2/C.5's vacuum-equivalent observability surface).
func (db *Database) Stats() storage.Stats {
	return db.engine.Stats()
}

// Execute plans and runs stmt. When a BEGIN issued through this same method
// is still open, stmt joins that transaction; otherwise it runs in a
// one-statement autocommit transaction (begin, run, commit-or-rollback),
// mirroring the teacher's StorageEngine.Put/Get/Del convenience wrappers.
func (db *Database) Execute(stmt planner.Statement, params ...rowcodec.Value) (executor.Result, error) {
	switch stmt.(type) {
	case *planner.BeginStatement:
		return executor.Result{}, db.beginStatement()
	case *planner.CommitStatement:
		return executor.Result{}, db.commitStatement()
	case *planner.RollbackStatement:
		return executor.Result{}, db.rollbackStatement()
	}

	db.mu.Lock()
	txn := db.currentTxn
	db.mu.Unlock()

	if txn != nil {
		return db.runStatement(stmt, txn, params)
	}

	txn, err := db.engine.Begin()
	if err != nil {
		return executor.Result{}, err
	}
	result, err := db.runStatement(stmt, txn, params)
	if err != nil {
		txn.Rollback()
		return executor.Result{}, err
	}
	if err := txn.Commit(); err != nil {
		return executor.Result{}, err
	}
	return result, nil
}

// Query is Execute's read-oriented alias (spec §6 names execute/query
// separately; TegDB has no distinct read path since every plan already
// carries its own access method).
func (db *Database) Query(stmt planner.Statement, params ...rowcodec.Value) (executor.Result, error) {
	return db.Execute(stmt, params...)
}

func (db *Database) runStatement(stmt planner.Statement, txn *storage.Transaction, params []rowcodec.Value) (executor.Result, error) {
	plan, err := db.planner.Plan(stmt)
	if err != nil {
		return executor.Result{}, err
	}
	return db.executor.Execute(plan, txn, params)
}

func (db *Database) beginStatement() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.currentTxn != nil {
		return &tegerrors.TransactionAlreadyActiveError{}
	}
	txn, err := db.engine.Begin()
	if err != nil {
		return err
	}
	db.currentTxn = txn
	return nil
}

func (db *Database) commitStatement() error {
	db.mu.Lock()
	txn := db.currentTxn
	db.currentTxn = nil
	db.mu.Unlock()
	if txn == nil {
		return &tegerrors.NoActiveTransactionError{}
	}
	return txn.Commit()
}

func (db *Database) rollbackStatement() error {
	db.mu.Lock()
	txn := db.currentTxn
	db.currentTxn = nil
	db.mu.Unlock()
	if txn == nil {
		return &tegerrors.NoActiveTransactionError{}
	}
	return txn.Rollback()
}

// Begin starts an explicit transaction and returns a handle that runs every
// subsequent statement against it until Commit or Rollback (spec §6:
// "Database::begin() → Tx. Transactions expose the same execute/query plus
// commit/rollback").
func (db *Database) Begin() (*Tx, error) {
	txn, err := db.engine.Begin()
	if err != nil {
		return nil, err
	}
	return &Tx{db: db, txn: txn}, nil
}

// Prepared is a planned statement with its Param holes left unbound, ready
// to be executed repeatedly against different parameter sets without
// re-planning (spec §4.7's prepared-statement contract).
type Prepared struct {
	plan planner.ExecutionPlan
}

// Prepare plans stmt once.
func (db *Database) Prepare(stmt planner.Statement) (*Prepared, error) {
	plan, err := db.planner.Plan(stmt)
	if err != nil {
		return nil, err
	}
	return &Prepared{plan: plan}, nil
}

// ExecutePrepared binds params into p's plan and runs it, autocommitting
// unless an explicit BEGIN (via Execute) is open.
func (db *Database) ExecutePrepared(p *Prepared, params ...rowcodec.Value) (executor.Result, error) {
	db.mu.Lock()
	txn := db.currentTxn
	db.mu.Unlock()

	if txn != nil {
		return db.executor.Execute(p.plan, txn, params)
	}

	txn, err := db.engine.Begin()
	if err != nil {
		return executor.Result{}, err
	}
	result, err := db.executor.Execute(p.plan, txn, params)
	if err != nil {
		txn.Rollback()
		return executor.Result{}, err
	}
	if err := txn.Commit(); err != nil {
		return executor.Result{}, err
	}
	return result, nil
}

// QueryPrepared is ExecutePrepared's read-oriented alias.
func (db *Database) QueryPrepared(p *Prepared, params ...rowcodec.Value) (executor.Result, error) {
	return db.ExecutePrepared(p, params...)
}
