package types

import (
	"bytes"
	"math"
	"sort"
	"testing"
)

func TestEncodeIntOrdering(t *testing.T) {
	values := []int64{-1000, -1, 0, 1, 2, 1000, 1 << 40, -(1 << 40)}
	encoded := make([][]byte, len(values))
	for i, v := range values {
		encoded[i] = EncodeInt(v)
	}

	sortedIdx := make([]int, len(values))
	for i := range sortedIdx {
		sortedIdx[i] = i
	}
	sort.Slice(sortedIdx, func(i, j int) bool { return values[sortedIdx[i]] < values[sortedIdx[j]] })

	for i := 1; i < len(sortedIdx); i++ {
		a := encoded[sortedIdx[i-1]]
		b := encoded[sortedIdx[i]]
		if bytes.Compare(a, b) > 0 {
			t.Fatalf("byte order does not match numeric order at %d", i)
		}
	}
}

func TestEncodeIntRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, math.MaxInt64, math.MinInt64} {
		if got := DecodeInt(EncodeInt(v)); got != v {
			t.Fatalf("round trip failed: want %d got %d", v, got)
		}
	}
}

func TestEncodeRealOrdering(t *testing.T) {
	values := []float64{-100.5, -1.0, -0.0001, 0, 0.0001, 1.0, 100.5}
	encoded := make([][]byte, len(values))
	for i, v := range values {
		encoded[i] = EncodeReal(v)
	}
	for i := 1; i < len(encoded); i++ {
		if bytes.Compare(encoded[i-1], encoded[i]) >= 0 {
			t.Fatalf("real encoding not strictly increasing at %d", i)
		}
	}
}

func TestEncodeRealRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1.5, -1.5, 3.14159, -3.14159} {
		if got := DecodeReal(EncodeReal(v)); got != v {
			t.Fatalf("round trip failed: want %v got %v", v, got)
		}
	}
}

func TestJoinKeyComponents(t *testing.T) {
	single := JoinKeyComponents(EncodeInt(5))
	if !bytes.Equal(single, EncodeInt(5)) {
		t.Fatalf("single component must not gain a separator")
	}

	joined := JoinKeyComponents(EncodeInt(1), EncodeText("abc"))
	want := append(append(EncodeInt(1), ComponentSeparator), EncodeText("abc")...)
	if !bytes.Equal(joined, want) {
		t.Fatalf("composite join mismatch: got %x want %x", joined, want)
	}
}

func TestByteKeyCompare(t *testing.T) {
	a := ByteKey([]byte{1, 2, 3})
	b := ByteKey([]byte{1, 2, 4})
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a < b")
	}
	if b.Compare(a) <= 0 {
		t.Fatalf("expected b > a")
	}
	if a.Compare(a) != 0 {
		t.Fatalf("expected a == a")
	}
}
