// Package rowcodec implements the binary row format (spec §4.5): a
// varint header of per-column type codes followed by a payload region,
// with partial decode by column index that never allocates for a
// skipped column. Primary-key columns never appear here — they are
// recoverable from the row's key — so an encoded record only ever carries
// a table's non-PK columns, in schema order.
package rowcodec

import "fmt"

// Kind tags which branch of Value is live.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindReal
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt:
		return "INTEGER"
	case KindReal:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is one decoded (or to-be-encoded) column value.
type Value struct {
	Kind  Kind
	Int   int64
	Real  float64
	Bytes []byte // TEXT (UTF-8) or BLOB payload
}

func Null() Value                { return Value{Kind: KindNull} }
func Int(v int64) Value          { return Value{Kind: KindInt, Int: v} }
func Real(v float64) Value       { return Value{Kind: KindReal, Real: v} }
func Text(v string) Value        { return Value{Kind: KindText, Bytes: []byte(v)} }
func Blob(v []byte) Value        { return Value{Kind: KindBlob, Bytes: v} }
func (v Value) IsNull() bool      { return v.Kind == KindNull }
func (v Value) String() string    { return string(v.Bytes) }
