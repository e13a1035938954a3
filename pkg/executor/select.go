package executor

import (
	"bytes"
	"sort"

	"github.com/cockroachdb/errors"

	tegerrors "github.com/tegdb/tegdb/pkg/errors"
	"github.com/tegdb/tegdb/pkg/planner"
	"github.com/tegdb/tegdb/pkg/rowcodec"
	"github.com/tegdb/tegdb/pkg/storage"
	"github.com/tegdb/tegdb/pkg/types"
)

// matchedRow is one row that survived the access method and the residual
// filter, ready to be projected (SELECT) or rewritten/removed (UPDATE,
// DELETE).
type matchedRow struct {
	key types.ByteKey
	ctx *rowContext
}

// execSelectAccess runs plan's access method end to end: seek, filter,
// project, and (for FullScan/RangeScan) apply ORDER BY and LIMIT.
func (ex *Executor) execSelectAccess(plan planner.ExecutionPlan, txn *storage.Transaction, params []rowcodec.Value) (Result, error) {
	var projection []string
	var limit *int
	var orderBy []planner.OrderTerm

	switch p := plan.(type) {
	case *planner.PointLookupPlan:
		projection = p.Projection
	case *planner.RangeScanPlan:
		projection, limit, orderBy = p.Projection, p.Limit, p.OrderBy
	case *planner.FullScanPlan:
		projection, limit, orderBy = p.Projection, p.Limit, p.OrderBy
	}

	matches, err := ex.matchingRows(plan, txn, params, limit, len(orderBy) == 0)
	if err != nil {
		return Result{}, err
	}

	rows := make([]Row, 0, len(matches))
	for _, m := range matches {
		row, err := m.ctx.projectedRow(projection)
		if err != nil {
			return Result{}, err
		}
		rows = append(rows, row)
	}

	if len(orderBy) > 0 {
		if err := sortRows(rows, orderBy); err != nil {
			return Result{}, err
		}
		if limit != nil && *limit < len(rows) {
			rows = rows[:*limit]
		}
	}

	return Result{Rows: rows}, nil
}

// matchingRows walks plan's access method, applying its residual Filter to
// every candidate row. When limitIfUnordered is true and plan carries a
// LIMIT, iteration stops the moment enough rows have been emitted — the
// streaming iterator must not read further storage entries (spec §4.8 step
// 2e). ORDER BY defeats this early exit (everything must be buffered and
// sorted first), so the caller passes limitIfUnordered=false in that case.
func (ex *Executor) matchingRows(plan planner.ExecutionPlan, txn *storage.Transaction, params []rowcodec.Value, limit *int, limitIfUnordered bool) ([]matchedRow, error) {
	switch p := plan.(type) {
	case *planner.PointLookupPlan:
		return ex.pointLookup(p, txn, params)
	case *planner.RangeScanPlan:
		return ex.rangeScan(p, txn, params, limit, limitIfUnordered)
	case *planner.FullScanPlan:
		return ex.fullScan(p, txn, params, limit, limitIfUnordered)
	default:
		return nil, errors.Newf("executor: %T is not a row access plan", plan)
	}
}

func (ex *Executor) pointLookup(p *planner.PointLookupPlan, txn *storage.Transaction, params []rowcodec.Value) ([]matchedRow, error) {
	schema, err := ex.schemaFor(p.Table)
	if err != nil {
		return nil, err
	}
	pkValues, err := evalExprs(p.PKValues, params)
	if err != nil {
		return nil, err
	}
	key, err := EncodeRowKey(schema, pkValues)
	if err != nil {
		return nil, err
	}

	value, ok := txn.Get(key)
	if !ok {
		return nil, nil
	}
	ctx := newRowContext(schema, key, value.Bytes(), params)
	matched, err := evalPredicate(p.Filter, ctx, params)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, nil
	}
	return []matchedRow{{key: key, ctx: ctx}}, nil
}

func (ex *Executor) rangeScan(p *planner.RangeScanPlan, txn *storage.Transaction, params []rowcodec.Value, limit *int, applyLimit bool) ([]matchedRow, error) {
	schema, err := ex.schemaFor(p.Table)
	if err != nil {
		return nil, err
	}
	pkCols := schema.PKColumns()
	prefixLen := len(p.EqualityPrefix)

	prefixValues, err := evalExprs(p.EqualityPrefix, params)
	if err != nil {
		return nil, err
	}
	prefixComponents := make([][]byte, 0, prefixLen+1)
	for i, v := range prefixValues {
		enc, err := encodePKComponent(pkCols[i], v)
		if err != nil {
			return nil, err
		}
		prefixComponents = append(prefixComponents, enc)
	}

	var boundCol storage.Column
	boundIsBound := prefixLen < len(pkCols)
	if boundIsBound {
		boundCol = pkCols[prefixLen]
	}

	var lowerVal, upperVal *rowcodec.Value
	if p.Lower != nil {
		v, err := evalScalar(p.Lower, nil, params)
		if err != nil {
			return nil, err
		}
		lowerVal = &v
	}
	if p.Upper != nil {
		v, err := evalScalar(p.Upper, nil, params)
		if err != nil {
			return nil, err
		}
		upperVal = &v
	}

	seekComponents := prefixComponents
	if lowerVal != nil {
		enc, err := encodePKComponent(boundCol, *lowerVal)
		if err != nil {
			return nil, err
		}
		seekComponents = append(append([][]byte{}, prefixComponents...), enc)
	}
	lower, upper := storage.TableScanBounds(p.Table)
	seekKey := lower
	if len(seekComponents) > 0 {
		seekKey = storage.RowKey(p.Table, types.JoinKeyComponents(seekComponents...))
	}

	cursor := txn.Scan(seekKey)
	defer cursor.Close()

	var out []matchedRow
	for cursor.Valid() {
		key := append(types.ByteKey{}, cursor.Key()...)
		if upper != nil && bytes.Compare(key, upper) >= 0 {
			break
		}

		ctx := newRowContext(schema, key, cursor.Value().Bytes(), params)
		pkValues, err := ctx.pkValues()
		if err != nil {
			return nil, err
		}

		prefixOK := true
		for i, v := range prefixValues {
			if cmp, err := compareValues(pkValues[i], v); err != nil || cmp != 0 {
				prefixOK = false
				break
			}
		}
		if !prefixOK {
			break // sorted order: once the equality prefix stops matching, no further row can
		}

		if boundIsBound {
			bv := pkValues[prefixLen]
			if lowerVal != nil {
				cmp, err := compareValues(bv, *lowerVal)
				if err != nil {
					return nil, err
				}
				if cmp < 0 || (cmp == 0 && !p.LowerInclusive) {
					if !cursor.Next() {
						break
					}
					continue
				}
			}
			if upperVal != nil {
				cmp, err := compareValues(bv, *upperVal)
				if err != nil {
					return nil, err
				}
				if cmp > 0 || (cmp == 0 && !p.UpperInclusive) {
					break // sorted ascending: nothing further can satisfy the upper bound either
				}
			}
		}

		matched, err := evalPredicate(p.Filter, ctx, params)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, matchedRow{key: key, ctx: ctx})
			if applyLimit && limit != nil && len(out) >= *limit {
				break
			}
		}

		if !cursor.Next() {
			break
		}
	}
	return out, nil
}

func (ex *Executor) fullScan(p *planner.FullScanPlan, txn *storage.Transaction, params []rowcodec.Value, limit *int, applyLimit bool) ([]matchedRow, error) {
	schema, err := ex.schemaFor(p.Table)
	if err != nil {
		return nil, err
	}
	lower, upper := storage.TableScanBounds(p.Table)

	cursor := txn.Scan(lower)
	defer cursor.Close()

	var out []matchedRow
	for cursor.Valid() {
		key := append(types.ByteKey{}, cursor.Key()...)
		if upper != nil && bytes.Compare(key, upper) >= 0 {
			break
		}

		ctx := newRowContext(schema, key, cursor.Value().Bytes(), params)
		matched, err := evalPredicate(p.Filter, ctx, params)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, matchedRow{key: key, ctx: ctx})
			if applyLimit && limit != nil && len(out) >= *limit {
				break
			}
		}

		if !cursor.Next() {
			break
		}
	}
	return out, nil
}

func evalExprs(exprs []planner.Expr, params []rowcodec.Value) ([]rowcodec.Value, error) {
	values := make([]rowcodec.Value, len(exprs))
	for i, e := range exprs {
		v, err := evalScalar(e, nil, params)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// sortRows realizes any ORDER BY beyond the natural PK-ascending order by
// buffering and sorting after filtering (spec §4.8's ordering rule).
func sortRows(rows []Row, orderBy []planner.OrderTerm) error {
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, term := range orderBy {
			vi, oki := columnValue(rows[i], term.Column)
			vj, okj := columnValue(rows[j], term.Column)
			if !oki || !okj {
				sortErr = &tegerrors.ColumnNotFoundError{Column: term.Column}
				return false
			}
			cmp, err := compareValues(vi, vj)
			if err != nil {
				sortErr = err
				return false
			}
			if cmp == 0 {
				continue
			}
			if term.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return sortErr
}

func columnValue(row Row, name string) (rowcodec.Value, bool) {
	for i, c := range row.Columns {
		if c == name {
			return row.Values[i], true
		}
	}
	return rowcodec.Value{}, false
}
