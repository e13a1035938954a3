package storage

import (
	"github.com/tegdb/tegdb/pkg/types"
	"github.com/tegdb/tegdb/pkg/wal"
)

// rowKeyPrefix returns "<table>:" ready to have PK-component bytes
// appended, or used on its own as the lower bound of a full table scan.
func rowKeyPrefix(table string) []byte {
	return append([]byte(table), ':')
}

// RowKey builds the storage key for a row: "<table>:<encoded-pk>", the
// PK components already encoded and joined by the caller (planner/executor)
// via types.JoinKeyComponents.
func RowKey(table string, encodedPK []byte) types.ByteKey {
	key := make([]byte, 0, len(table)+1+len(encodedPK))
	key = append(key, rowKeyPrefix(table)...)
	key = append(key, encodedPK...)
	return types.ByteKey(key)
}

// TableScanBounds returns the half-open [lower, upper) range that covers
// every row of table, for a full scan with no PK constraint.
func TableScanBounds(table string) (lower, upper types.ByteKey) {
	lower = types.ByteKey(rowKeyPrefix(table))
	upper = types.ByteKey(tablePrefixUpperBound(table))
	return
}

// tablePrefixUpperBound returns the smallest key strictly greater than
// every key beginning with "<table>:" by incrementing the prefix's last
// byte — the standard trick for turning a prefix into a half-open range.
func tablePrefixUpperBound(table string) []byte {
	prefix := rowKeyPrefix(table)
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	// All 0xFF: no finite upper bound: nil means "scan to the end".
	return nil
}

// SchemaKey builds the storage key a TableSchema is persisted under.
func SchemaKey(table string) types.ByteKey {
	return types.ByteKey(wal.SchemaKeyPrefix + table)
}

// IsReservedKey reports whether key belongs to the engine's own namespace
// (spec §3: "any key beginning with __ is engine-owned").
func IsReservedKey(key []byte) bool {
	return len(key) >= 2 && key[0] == '_' && key[1] == '_'
}
