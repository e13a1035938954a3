package storage

import (
	"sync"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/v2/bson"

	tegerrors "github.com/tegdb/tegdb/pkg/errors"
)

// ColumnType is one of the four SQL types TegDB's RowCodec understands.
type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeReal
	TypeText
	TypeBlob
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	case TypeText:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// Constraint is one column-level constraint.
type Constraint int

const (
	ConstraintNone Constraint = iota
	ConstraintPrimaryKey
	ConstraintNotNull
	ConstraintUnique
)

// Column describes one table column (spec §3's TableSchema).
type Column struct {
	Name        string     `bson:"name"`
	Type        ColumnType `bson:"type"`
	Constraints []Constraint `bson:"constraints"`
	// TextLength is the required length bound for TEXT columns (spec §3).
	TextLength int `bson:"text_length,omitempty"`
	// VectorLength, when > 0, marks this REAL column as part of a
	// fixed-dimension vector of the declared length (spec §3).
	VectorLength int `bson:"vector_length,omitempty"`
}

func (c Column) has(want Constraint) bool {
	for _, c2 := range c.Constraints {
		if c2 == want {
			return true
		}
	}
	return false
}

func (c Column) IsPrimaryKey() bool { return c.has(ConstraintPrimaryKey) }
func (c Column) IsNotNull() bool    { return c.has(ConstraintNotNull) }
func (c Column) IsUnique() bool     { return c.has(ConstraintUnique) }

// TableSchema is the persisted, versioned description of one table.
type TableSchema struct {
	Version int      `bson:"version"`
	Table   string   `bson:"table"`
	Columns []Column `bson:"columns"`

	// pkIndexes and nonPKIndexes are derived, not persisted: they are
	// recomputed by deriveIndexes whenever a schema is constructed or
	// loaded, so they are always consistent with Columns.
	pkIndexes    []int `bson:"-"`
	nonPKIndexes []int `bson:"-"`
}

const schemaVersion = 1

// NewTableSchema validates columns and builds a TableSchema, enforcing
// spec §3's invariant that every table has at least one PRIMARY KEY column.
func NewTableSchema(table string, columns []Column) (*TableSchema, error) {
	s := &TableSchema{Version: schemaVersion, Table: table, Columns: columns}
	s.deriveIndexes()

	if len(s.pkIndexes) == 0 {
		return nil, &tegerrors.PrimaryKeyNotDefinedError{TableName: table}
	}
	for _, c := range columns {
		if c.Type == TypeText && c.TextLength <= 0 {
			return nil, &tegerrors.SchemaError{Table: table, Column: c.Name, Message: "TEXT columns require a length bound"}
		}
	}
	return s, nil
}

func (s *TableSchema) deriveIndexes() {
	s.pkIndexes = s.pkIndexes[:0]
	s.nonPKIndexes = s.nonPKIndexes[:0]
	for i, c := range s.Columns {
		if c.IsPrimaryKey() {
			s.pkIndexes = append(s.pkIndexes, i)
		} else {
			s.nonPKIndexes = append(s.nonPKIndexes, i)
		}
	}
}

// PKColumns returns the schema's primary-key columns, in declaration order.
func (s *TableSchema) PKColumns() []Column {
	cols := make([]Column, len(s.pkIndexes))
	for i, idx := range s.pkIndexes {
		cols[i] = s.Columns[idx]
	}
	return cols
}

// NonPKColumns returns the schema's non-PK columns, in declaration order —
// the same order the RowCodec payload stores them in.
func (s *TableSchema) NonPKColumns() []Column {
	cols := make([]Column, len(s.nonPKIndexes))
	for i, idx := range s.nonPKIndexes {
		cols[i] = s.Columns[idx]
	}
	return cols
}

// ColumnIndex returns the declaration-order index of name, or -1.
func (s *TableSchema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Catalog caches every table's schema in memory, backed by persisted
// records under the "__schema__:" namespace (spec §4.6).
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*TableSchema
}

func newCatalog() *Catalog {
	return &Catalog{tables: make(map[string]*TableSchema)}
}

// warm populates the catalog from already-decoded schema bytes, called
// once at Engine.Open while folding recovered WAL entries into the KeyMap.
func (c *Catalog) warm(table string, data []byte) error {
	var s TableSchema
	if err := bson.Unmarshal(data, &s); err != nil {
		return errors.Wrapf(err, "decode schema for table %q (fatal: decode failures at open are unrecoverable)", table)
	}
	s.deriveIndexes()
	c.mu.Lock()
	c.tables[table] = &s
	c.mu.Unlock()
	return nil
}

// Get returns table's cached schema.
func (c *Catalog) Get(table string) (*TableSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.tables[table]
	return s, ok
}

// Put registers s in the cache (called after a successful CREATE TABLE
// write, or removed after DROP TABLE — see Remove). Exported so the
// executor can update the cache in the same transaction that persists the
// schema record.
func (c *Catalog) Put(s *TableSchema) {
	c.mu.Lock()
	c.tables[s.Table] = s
	c.mu.Unlock()
}

// Remove evicts table's cached schema (called after a successful DROP
// TABLE, and by WAL-replay recovery when it encounters a schema tombstone).
func (c *Catalog) Remove(table string) {
	c.mu.Lock()
	delete(c.tables, table)
	c.mu.Unlock()
}

// Tables lists every known table name.
func (c *Catalog) Tables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	return names
}

// MarshalSchema serializes s for persistence under its SchemaKey.
func MarshalSchema(s *TableSchema) ([]byte, error) {
	return bson.Marshal(s)
}
