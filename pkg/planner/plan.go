package planner

import "github.com/tegdb/tegdb/pkg/storage"

// ExecutionPlan is the planner's output: the access method (and, for
// writes, the operation) the executor runs (spec §4.7).
type ExecutionPlan interface{ isPlan() }

// PointLookupPlan is chosen when WHERE equates every PK column to a
// literal or parameter.
type PointLookupPlan struct {
	Table      string
	PKValues   []Expr // one per PK column, in declared PK order
	Filter     Expr   // residual predicate on non-PK columns, if any
	Projection []string
}

// RangeScanPlan is chosen when WHERE binds a leading prefix of PK columns
// to equality plus an optional comparison on the next PK column.
type RangeScanPlan struct {
	Table          string
	EqualityPrefix []Expr // leading PK columns bound to equality, in PK order
	Lower, Upper   Expr   // bound on the PK column right after the prefix, either may be nil
	LowerInclusive bool
	UpperInclusive bool
	Filter         Expr
	Projection     []string
	Limit          *int
	OrderBy        []OrderTerm
}

// FullScanPlan is chosen when the WHERE clause does not constrain a PK
// prefix at all.
type FullScanPlan struct {
	Table      string
	Filter     Expr
	Projection []string
	Limit      *int
	OrderBy    []OrderTerm
}

// EmptyPlan is produced when the planner proves WHERE can never match (spec
// §4.7's "contradictions yield an empty plan" tie-break rule).
type EmptyPlan struct{ Table string }

type InsertPlan struct {
	Table   string
	Columns []string // empty means schema declaration order
	Rows    [][]Expr
}

// UpdatePlan re-evaluates Assignments against every row Source's access
// method yields.
type UpdatePlan struct {
	Source      ExecutionPlan
	Assignments []Assignment
}

type DeletePlan struct {
	Source ExecutionPlan
}

type CreateTablePlan struct {
	Table   string
	Columns []storage.Column
}

type DropTablePlan struct{ Table string }

type BeginPlan struct{}
type CommitPlan struct{}
type RollbackPlan struct{}

// CreateIndexPlan, DropIndexPlan, CreateExtensionPlan and DropExtensionPlan
// are recognized so the planner never fails on these AST shapes; the
// executor rejects all four with a SchemaError (SPEC_FULL.md item C.4).
type CreateIndexPlan struct{ Table, Index string }
type DropIndexPlan struct{ Index string }
type CreateExtensionPlan struct{ Name string }
type DropExtensionPlan struct{ Name string }

func (*PointLookupPlan) isPlan()    {}
func (*RangeScanPlan) isPlan()      {}
func (*FullScanPlan) isPlan()       {}
func (*EmptyPlan) isPlan()          {}
func (*InsertPlan) isPlan()         {}
func (*UpdatePlan) isPlan()         {}
func (*DeletePlan) isPlan()         {}
func (*CreateTablePlan) isPlan()    {}
func (*DropTablePlan) isPlan()      {}
func (*BeginPlan) isPlan()          {}
func (*CommitPlan) isPlan()         {}
func (*RollbackPlan) isPlan()       {}
func (*CreateIndexPlan) isPlan()     {}
func (*DropIndexPlan) isPlan()      {}
func (*CreateExtensionPlan) isPlan() {}
func (*DropExtensionPlan) isPlan()  {}
