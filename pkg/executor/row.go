package executor

import (
	tegerrors "github.com/tegdb/tegdb/pkg/errors"
	"github.com/tegdb/tegdb/pkg/rowcodec"
	"github.com/tegdb/tegdb/pkg/storage"
	"github.com/tegdb/tegdb/pkg/types"
)

// rowContext resolves column references against one stored row, decoding
// PK columns from the key and non-PK columns from the value payload lazily
// and only once each (spec §4.8 step 2's partial-decode contract).
type rowContext struct {
	schema   *storage.TableSchema
	key      types.ByteKey
	value    []byte // rowcodec-encoded non-PK column payload, nil for a pending (not-yet-written) row
	params   []rowcodec.Value
	pk       []rowcodec.Value // decoded lazily
	pkReady  bool
	nonPK    map[int]rowcodec.Value
}

func newRowContext(schema *storage.TableSchema, key types.ByteKey, value []byte, params []rowcodec.Value) *rowContext {
	return &rowContext{schema: schema, key: key, value: value, params: params, nonPK: make(map[int]rowcodec.Value)}
}

func (r *rowContext) pkValues() ([]rowcodec.Value, error) {
	if r.pkReady {
		return r.pk, nil
	}
	encodedPK := r.key[len(r.schema.Table)+1:]
	values, err := DecodePKFromKey(r.schema, encodedPK)
	if err != nil {
		return nil, err
	}
	r.pk = values
	r.pkReady = true
	return r.pk, nil
}

// column resolves name to its decoded value, checking PK columns first
// (cheap: already materialized from the key) then partial-decoding the
// single requested non-PK column from the value payload.
func (r *rowContext) column(name string) (rowcodec.Value, error) {
	idx := r.schema.ColumnIndex(name)
	if idx < 0 {
		return rowcodec.Value{}, &tegerrors.ColumnNotFoundError{Table: r.schema.Table, Column: name}
	}

	for pkIdx, col := range r.schema.PKColumns() {
		if col.Name == name {
			pk, err := r.pkValues()
			if err != nil {
				return rowcodec.Value{}, err
			}
			return pk[pkIdx], nil
		}
	}

	if v, ok := r.nonPK[idx]; ok {
		return v, nil
	}
	nonPKIdx := -1
	for i, col := range r.schema.NonPKColumns() {
		if col.Name == name {
			nonPKIdx = i
			break
		}
	}
	if nonPKIdx < 0 {
		return rowcodec.Value{}, &tegerrors.ColumnNotFoundError{Table: r.schema.Table, Column: name}
	}
	if r.value == nil {
		return rowcodec.Null(), nil
	}
	v, err := rowcodec.DecodeColumn(r.value, nonPKIdx)
	if err != nil {
		return rowcodec.Value{}, err
	}
	r.nonPK[idx] = v
	return v, nil
}

// projectedRow decodes the full row (all PK and non-PK columns, or just
// columns when non-empty) for emission as a Select result.
func (r *rowContext) projectedRow(columns []string) (Row, error) {
	names := columns
	if len(names) == 0 {
		names = make([]string, len(r.schema.Columns))
		for i, c := range r.schema.Columns {
			names[i] = c.Name
		}
	}
	values := make([]rowcodec.Value, len(names))
	for i, name := range names {
		v, err := r.column(name)
		if err != nil {
			return Row{}, err
		}
		values[i] = v
	}
	return Row{Columns: names, Values: values}, nil
}
