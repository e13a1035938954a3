package planner

import "github.com/tegdb/tegdb/pkg/storage"

// OrderTerm is one ORDER BY term.
type OrderTerm struct {
	Column string
	Desc   bool
}

// Assignment is one "column = expr" pair of an UPDATE statement.
type Assignment struct {
	Column string
	Value  Expr
}

// Statement is one parsed SQL statement, per spec §6's AST contract.
type Statement interface{ isStatement() }

type SelectStatement struct {
	Table   string
	Columns []string // empty means "every column"
	Where   Expr     // nil means no predicate
	OrderBy []OrderTerm
	Limit   *int
}

type InsertStatement struct {
	Table   string
	Columns []string // column order the Rows' expressions follow; empty means schema declaration order
	Rows    [][]Expr
}

type UpdateStatement struct {
	Table       string
	Assignments []Assignment
	Where       Expr
}

type DeleteStatement struct {
	Table string
	Where Expr
}

type CreateTableStatement struct {
	Table   string
	Columns []storage.Column
}

type DropTableStatement struct{ Table string }

type BeginStatement struct{}
type CommitStatement struct{}
type RollbackStatement struct{}

// CreateIndexStatement, DropIndexStatement, CreateExtensionStatement and
// DropExtensionStatement are recognized shapes from spec §6's AST, but
// TegDB has neither secondary indexes nor an extension registry (spec §1
// Non-goals) — see SPEC_FULL.md item C.4 for why the planner still accepts
// them rather than panicking on an unknown Statement.
type CreateIndexStatement struct {
	Table, Index string
	Columns      []string
}
type DropIndexStatement struct{ Index string }
type CreateExtensionStatement struct{ Name string }
type DropExtensionStatement struct{ Name string }

func (*SelectStatement) isStatement()         {}
func (*InsertStatement) isStatement()         {}
func (*UpdateStatement) isStatement()         {}
func (*DeleteStatement) isStatement()         {}
func (*CreateTableStatement) isStatement()    {}
func (*DropTableStatement) isStatement()      {}
func (*BeginStatement) isStatement()          {}
func (*CommitStatement) isStatement()         {}
func (*RollbackStatement) isStatement()       {}
func (*CreateIndexStatement) isStatement()    {}
func (*DropIndexStatement) isStatement()      {}
func (*CreateExtensionStatement) isStatement() {}
func (*DropExtensionStatement) isStatement()  {}
