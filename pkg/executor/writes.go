package executor

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"

	tegerrors "github.com/tegdb/tegdb/pkg/errors"
	"github.com/tegdb/tegdb/pkg/planner"
	"github.com/tegdb/tegdb/pkg/rowcodec"
	"github.com/tegdb/tegdb/pkg/storage"
	"github.com/tegdb/tegdb/pkg/types"
)

// execCreateTable persists a new schema record and warms the catalog in
// the same transaction (spec §4.6: DDL updates store and cache together).
func (ex *Executor) execCreateTable(p *planner.CreateTablePlan, txn *storage.Transaction) (Result, error) {
	if _, ok := ex.engine.Catalog().Get(p.Table); ok {
		return Result{}, &tegerrors.TableAlreadyExistsError{Name: p.Table}
	}
	schema, err := storage.NewTableSchema(p.Table, p.Columns)
	if err != nil {
		return Result{}, err
	}
	data, err := storage.MarshalSchema(schema)
	if err != nil {
		return Result{}, errors.Wrap(err, "marshal new table schema")
	}
	if err := txn.Set(storage.SchemaKey(p.Table), data); err != nil {
		return Result{}, errors.Wrap(err, "persist new table schema")
	}
	ex.engine.Catalog().Put(schema)
	return Result{RowsAffected: 1}, nil
}

// execDropTable removes the schema record, the catalog entry, and every
// row stored under the table's key prefix.
func (ex *Executor) execDropTable(p *planner.DropTablePlan, txn *storage.Transaction) (Result, error) {
	if _, err := ex.schemaFor(p.Table); err != nil {
		return Result{}, err
	}

	lower, upper := storage.TableScanBounds(p.Table)
	cursor := txn.Scan(lower)
	var keys []types.ByteKey
	for cursor.Valid() {
		key := append(types.ByteKey{}, cursor.Key()...)
		if upper != nil && bytes.Compare(key, upper) >= 0 {
			break
		}
		keys = append(keys, key)
		if !cursor.Next() {
			break
		}
	}
	cursor.Close()

	for _, key := range keys {
		if _, err := txn.Delete(key); err != nil {
			return Result{}, errors.Wrap(err, "drop table row")
		}
	}
	if _, err := txn.Delete(storage.SchemaKey(p.Table)); err != nil {
		return Result{}, errors.Wrap(err, "drop table schema record")
	}

	ex.engine.Catalog().Remove(p.Table)
	return Result{RowsAffected: len(keys)}, nil
}

// execInsert validates and writes every row of p (spec §4.8's Insert rule).
func (ex *Executor) execInsert(p *planner.InsertPlan, txn *storage.Transaction, params []rowcodec.Value) (Result, error) {
	schema, err := ex.schemaFor(p.Table)
	if err != nil {
		return Result{}, err
	}
	columns := p.Columns
	if len(columns) == 0 {
		columns = make([]string, len(schema.Columns))
		for i, c := range schema.Columns {
			columns[i] = c.Name
		}
	}

	affected := 0
	for _, rowExprs := range p.Rows {
		byName := make(map[string]rowcodec.Value, len(columns))
		for i, name := range columns {
			v, err := evalScalar(rowExprs[i], nil, params)
			if err != nil {
				return Result{}, err
			}
			byName[name] = v
		}

		pkValues, nonPKValues, err := ex.buildRowValues(schema, byName)
		if err != nil {
			return Result{}, err
		}

		key, err := EncodeRowKey(schema, pkValues)
		if err != nil {
			return Result{}, err
		}
		if _, ok := txn.Get(key); ok {
			return Result{}, &tegerrors.PrimaryKeyViolationError{Table: p.Table, Key: key.String()}
		}
		if err := ex.checkUniqueConstraints(schema, txn, nonPKValues, key, false); err != nil {
			return Result{}, err
		}

		if err := txn.Set(key, rowcodec.Encode(nonPKValues)); err != nil {
			return Result{}, err
		}
		affected++
	}
	return Result{RowsAffected: affected}, nil
}

// buildRowValues splits byName into PK-order and non-PK-order value slices,
// applying NULL/type/length validation (spec §4.8's Insert constraint
// checks; NOT NULL/UNIQUE/type/length).
func (ex *Executor) buildRowValues(schema *storage.TableSchema, byName map[string]rowcodec.Value) ([]rowcodec.Value, []rowcodec.Value, error) {
	pkCols := schema.PKColumns()
	nonPKCols := schema.NonPKColumns()

	pkValues := make([]rowcodec.Value, len(pkCols))
	for i, col := range pkCols {
		v, ok := byName[col.Name]
		if !ok {
			v = rowcodec.Null()
		}
		if err := validateColumnValue(schema.Table, col, v); err != nil {
			return nil, nil, err
		}
		pkValues[i] = v
	}

	nonPKValues := make([]rowcodec.Value, len(nonPKCols))
	for i, col := range nonPKCols {
		v, ok := byName[col.Name]
		if !ok {
			v = rowcodec.Null()
		}
		if err := validateColumnValue(schema.Table, col, v); err != nil {
			return nil, nil, err
		}
		nonPKValues[i] = v
	}
	return pkValues, nonPKValues, nil
}

func validateColumnValue(table string, col storage.Column, v rowcodec.Value) error {
	if v.IsNull() {
		if col.IsNotNull() || col.IsPrimaryKey() {
			return &tegerrors.SchemaError{Table: table, Column: col.Name, Message: "NOT NULL column cannot be NULL"}
		}
		return nil
	}
	switch col.Type {
	case storage.TypeInteger:
		if v.Kind != rowcodec.KindInt {
			return &tegerrors.SchemaError{Table: table, Column: col.Name, Message: "expected an INTEGER value"}
		}
	case storage.TypeReal:
		if v.Kind != rowcodec.KindReal {
			return &tegerrors.SchemaError{Table: table, Column: col.Name, Message: "expected a REAL value"}
		}
	case storage.TypeText:
		if v.Kind != rowcodec.KindText {
			return &tegerrors.SchemaError{Table: table, Column: col.Name, Message: "expected a TEXT value"}
		}
		if col.TextLength > 0 && len(v.Bytes) > col.TextLength {
			return &tegerrors.SchemaError{Table: table, Column: col.Name, Message: "TEXT value exceeds declared length"}
		}
	case storage.TypeBlob:
		if v.Kind != rowcodec.KindBlob {
			return &tegerrors.SchemaError{Table: table, Column: col.Name, Message: "expected a BLOB value"}
		}
	}
	return nil
}

// checkUniqueConstraints walks the whole table (there are no secondary
// indexes to consult, spec §1 Non-goals) looking for an existing row whose
// UNIQUE column matches one of nonPKValues, other than excludeKey itself
// (the row being updated, when isUpdate is true).
func (ex *Executor) checkUniqueConstraints(schema *storage.TableSchema, txn *storage.Transaction, nonPKValues []rowcodec.Value, excludeKey types.ByteKey, isUpdate bool) error {
	nonPKCols := schema.NonPKColumns()
	uniqueIdx := -1
	for i, col := range nonPKCols {
		if col.IsUnique() {
			uniqueIdx = i
			break
		}
	}
	if uniqueIdx < 0 {
		return nil
	}

	lower, upper := storage.TableScanBounds(schema.Table)
	cursor := txn.Scan(lower)
	defer cursor.Close()

	for cursor.Valid() {
		key := cursor.Key()
		if upper != nil && bytes.Compare(key, upper) >= 0 {
			break
		}
		if isUpdate && bytes.Equal(key, excludeKey) {
			if !cursor.Next() {
				break
			}
			continue
		}
		for i, col := range nonPKCols {
			if !col.IsUnique() {
				continue
			}
			existing, err := rowcodec.DecodeColumn(cursor.Value().Bytes(), i)
			if err != nil {
				return err
			}
			if existing.IsNull() || nonPKValues[i].IsNull() {
				continue
			}
			if cmp, err := compareValues(existing, nonPKValues[i]); err == nil && cmp == 0 {
				return &tegerrors.UniqueViolationError{Table: schema.Table, Column: col.Name, Value: valueString(nonPKValues[i])}
			}
		}
		if !cursor.Next() {
			break
		}
	}
	return nil
}

func valueString(v rowcodec.Value) string {
	switch v.Kind {
	case rowcodec.KindText:
		return string(v.Bytes)
	case rowcodec.KindInt:
		return fmt.Sprintf("%d", v.Int)
	case rowcodec.KindReal:
		return fmt.Sprintf("%g", v.Real)
	default:
		return v.Kind.String()
	}
}

// execUpdate re-evaluates p.Assignments against every row p.Source matches.
// Changing a PK column is delete-then-insert with a uniqueness check (spec
// §4.8: "Changing a PK column requires delete-then-insert with uniqueness
// check" — both steps go through the same transaction's undo log, so a
// rollback mid-update is two ordinary undo entries, not a special case).
func (ex *Executor) execUpdate(p *planner.UpdatePlan, txn *storage.Transaction, params []rowcodec.Value) (Result, error) {
	matches, err := ex.matchingRows(p.Source, txn, params, nil, false)
	if err != nil {
		return Result{}, err
	}

	affected := 0
	for _, m := range matches {
		schema := m.ctx.schema
		byName := make(map[string]rowcodec.Value, len(schema.Columns))
		for _, col := range schema.Columns {
			v, err := m.ctx.column(col.Name)
			if err != nil {
				return Result{}, err
			}
			byName[col.Name] = v
		}

		pkChanged := false
		for _, asn := range p.Assignments {
			v, err := evalScalar(asn.Value, m.ctx, params)
			if err != nil {
				return Result{}, err
			}
			if err := validateColumnValue(schema.Table, columnByName(schema, asn.Column), v); err != nil {
				return Result{}, err
			}
			if isPKColumn(schema, asn.Column) {
				pkChanged = true
			}
			byName[asn.Column] = v
		}

		pkValues, nonPKValues, err := ex.buildRowValues(schema, byName)
		if err != nil {
			return Result{}, err
		}
		newKey, err := EncodeRowKey(schema, pkValues)
		if err != nil {
			return Result{}, err
		}

		if pkChanged {
			if !bytes.Equal(newKey, m.key) {
				if _, ok := txn.Get(newKey); ok {
					return Result{}, &tegerrors.PrimaryKeyViolationError{Table: schema.Table, Key: newKey.String()}
				}
			}
			if err := ex.checkUniqueConstraints(schema, txn, nonPKValues, m.key, true); err != nil {
				return Result{}, err
			}
			if _, err := txn.Delete(m.key); err != nil {
				return Result{}, err
			}
			if err := txn.Set(newKey, rowcodec.Encode(nonPKValues)); err != nil {
				return Result{}, err
			}
		} else {
			if err := ex.checkUniqueConstraints(schema, txn, nonPKValues, m.key, true); err != nil {
				return Result{}, err
			}
			if err := txn.Set(m.key, rowcodec.Encode(nonPKValues)); err != nil {
				return Result{}, err
			}
		}
		affected++
	}
	return Result{RowsAffected: affected}, nil
}

func columnByName(schema *storage.TableSchema, name string) storage.Column {
	idx := schema.ColumnIndex(name)
	if idx < 0 {
		return storage.Column{Name: name}
	}
	return schema.Columns[idx]
}

func isPKColumn(schema *storage.TableSchema, name string) bool {
	for _, c := range schema.PKColumns() {
		if c.Name == name {
			return true
		}
	}
	return false
}

// execDelete removes every row p.Source matches.
func (ex *Executor) execDelete(p *planner.DeletePlan, txn *storage.Transaction, params []rowcodec.Value) (Result, error) {
	matches, err := ex.matchingRows(p.Source, txn, params, nil, false)
	if err != nil {
		return Result{}, err
	}
	for _, m := range matches {
		if _, err := txn.Delete(m.key); err != nil {
			return Result{}, err
		}
	}
	return Result{RowsAffected: len(matches)}, nil
}
