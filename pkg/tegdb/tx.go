package tegdb

import (
	"github.com/tegdb/tegdb/pkg/executor"
	"github.com/tegdb/tegdb/pkg/planner"
	"github.com/tegdb/tegdb/pkg/rowcodec"
	"github.com/tegdb/tegdb/pkg/storage"
)

// Tx is an explicit, multi-statement transaction obtained from
// Database.Begin. Every statement run through it shares the same
// storage.Transaction until Commit or Rollback.
type Tx struct {
	db  *Database
	txn *storage.Transaction
}

// Execute plans and runs stmt against t's transaction.
func (t *Tx) Execute(stmt planner.Statement, params ...rowcodec.Value) (executor.Result, error) {
	return t.db.runStatement(stmt, t.txn, params)
}

// Query is Execute's read-oriented alias.
func (t *Tx) Query(stmt planner.Statement, params ...rowcodec.Value) (executor.Result, error) {
	return t.Execute(stmt, params...)
}

// Commit finalizes the transaction, persisting every write made through it.
func (t *Tx) Commit() error {
	return t.txn.Commit()
}

// Rollback undoes every write made through the transaction.
func (t *Tx) Rollback() error {
	return t.txn.Rollback()
}

// Drop rolls back if the transaction was never finalized — call from a
// defer immediately after Begin, mirroring storage.Transaction.Drop.
func (t *Tx) Drop() {
	t.txn.Drop()
}
