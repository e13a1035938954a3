package executor

import (
	"bytes"

	tegerrors "github.com/tegdb/tegdb/pkg/errors"
	"github.com/tegdb/tegdb/pkg/rowcodec"
	"github.com/tegdb/tegdb/pkg/storage"
	"github.com/tegdb/tegdb/pkg/types"
)

// encodePKComponent encodes one PK value per its declared column type
// (spec §3's order-preserving key encoding).
func encodePKComponent(col storage.Column, v rowcodec.Value) ([]byte, error) {
	switch col.Type {
	case storage.TypeInteger:
		if v.Kind != rowcodec.KindInt {
			return nil, &tegerrors.SchemaError{Table: "", Column: col.Name, Message: "expected INTEGER value"}
		}
		return types.EncodeInt(v.Int), nil
	case storage.TypeReal:
		if v.Kind != rowcodec.KindReal {
			return nil, &tegerrors.SchemaError{Table: "", Column: col.Name, Message: "expected REAL value"}
		}
		return types.EncodeReal(v.Real), nil
	case storage.TypeText:
		if v.Kind != rowcodec.KindText {
			return nil, &tegerrors.SchemaError{Table: "", Column: col.Name, Message: "expected TEXT value"}
		}
		if col.TextLength > 0 && len(v.Bytes) > col.TextLength {
			return nil, &tegerrors.SchemaError{Table: "", Column: col.Name, Message: "TEXT value exceeds declared length"}
		}
		if bytes.IndexByte(v.Bytes, types.ComponentSeparator) >= 0 {
			return nil, &tegerrors.SchemaError{Table: "", Column: col.Name, Message: "TEXT primary-key component cannot contain a NUL byte"}
		}
		return types.EncodeText(string(v.Bytes)), nil
	default:
		return nil, &tegerrors.SchemaError{Table: "", Column: col.Name, Message: "unsupported primary-key column type"}
	}
}

// EncodeRowKey builds the storage key for one row from its PK values, in
// schema.PKColumns() order.
func EncodeRowKey(schema *storage.TableSchema, pkValues []rowcodec.Value) (types.ByteKey, error) {
	pkCols := schema.PKColumns()
	if len(pkValues) != len(pkCols) {
		return nil, &tegerrors.SchemaError{Table: schema.Table, Message: "primary key value count mismatch"}
	}
	components := make([][]byte, len(pkCols))
	for i, col := range pkCols {
		enc, err := encodePKComponent(col, pkValues[i])
		if err != nil {
			return nil, err
		}
		components[i] = enc
	}
	return storage.RowKey(schema.Table, types.JoinKeyComponents(components...)), nil
}

// DecodePKFromKey is EncodeRowKey's inverse: it recovers the typed PK
// values from a row key's encoded-PK suffix (the bytes after "<table>:").
// Fixed-width columns (INTEGER, REAL) consume exactly 8 bytes; TEXT columns
// consume bytes up to the next component separator, relying on the
// encode-time guarantee that TEXT components never contain one themselves.
func DecodePKFromKey(schema *storage.TableSchema, encodedPK []byte) ([]rowcodec.Value, error) {
	pkCols := schema.PKColumns()
	values := make([]rowcodec.Value, len(pkCols))
	cursor := 0

	for i, col := range pkCols {
		if i > 0 {
			if cursor >= len(encodedPK) {
				return nil, &tegerrors.CorruptionError{Context: "executor: primary key decode", Err: errShortKey}
			}
			cursor++ // skip the component separator
		}

		switch col.Type {
		case storage.TypeInteger, storage.TypeReal:
			if cursor+8 > len(encodedPK) {
				return nil, &tegerrors.CorruptionError{Context: "executor: primary key decode", Err: errShortKey}
			}
			buf := encodedPK[cursor : cursor+8]
			if col.Type == storage.TypeInteger {
				values[i] = rowcodec.Int(types.DecodeInt(buf))
			} else {
				values[i] = rowcodec.Real(types.DecodeReal(buf))
			}
			cursor += 8
		case storage.TypeText:
			end := bytes.IndexByte(encodedPK[cursor:], types.ComponentSeparator)
			if end < 0 {
				end = len(encodedPK) - cursor
			}
			values[i] = rowcodec.Text(string(encodedPK[cursor : cursor+end]))
			cursor += end
		default:
			return nil, &tegerrors.SchemaError{Table: schema.Table, Column: col.Name, Message: "unsupported primary-key column type"}
		}
	}
	return values, nil
}
