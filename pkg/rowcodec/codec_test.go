package rowcodec

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	row := []Value{
		Null(),
		Int(42),
		Int(-1 << 40),
		Real(3.14159),
		Text("hello"),
		Blob([]byte{0xDE, 0xAD, 0xBE, 0xEF}),
	}

	encoded := Encode(row)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(decoded) != len(row) {
		t.Fatalf("column count mismatch: got %d want %d", len(decoded), len(row))
	}

	for i, want := range row {
		got := decoded[i]
		if got.Kind != want.Kind {
			t.Fatalf("column %d kind mismatch: got %v want %v", i, got.Kind, want.Kind)
		}
		switch want.Kind {
		case KindInt:
			if got.Int != want.Int {
				t.Fatalf("column %d int mismatch: got %d want %d", i, got.Int, want.Int)
			}
		case KindReal:
			if got.Real != want.Real {
				t.Fatalf("column %d real mismatch: got %v want %v", i, got.Real, want.Real)
			}
		case KindText, KindBlob:
			if !bytes.Equal(got.Bytes, want.Bytes) {
				t.Fatalf("column %d bytes mismatch: got %x want %x", i, got.Bytes, want.Bytes)
			}
		}
	}
}

func TestNarrowestIntWidth(t *testing.T) {
	cases := []struct {
		v            int64
		expectedCode uint64
	}{
		{0, 1},
		{127, 1},
		{-128, 1},
		{128, 2},
		{-129, 2},
		{1 << 20, 4},
		{1 << 40, 8},
	}

	for _, c := range cases {
		code, _ := encodeInt(c.v)
		if code != c.expectedCode {
			t.Fatalf("encodeInt(%d): got width code %d want %d", c.v, code, c.expectedCode)
		}
	}
}

func TestDecodeColumnDoesNotTouchOtherColumns(t *testing.T) {
	row := []Value{Int(1), Text("this column is never decoded"), Int(99)}
	encoded := Encode(row)

	v, err := DecodeColumn(encoded, 2)
	if err != nil {
		t.Fatalf("DecodeColumn: %v", err)
	}
	if v.Kind != KindInt || v.Int != 99 {
		t.Fatalf("unexpected partial decode result: %+v", v)
	}
}

func TestDecodeColumnOutOfRange(t *testing.T) {
	encoded := Encode([]Value{Int(1)})
	if _, err := DecodeColumn(encoded, 5); err == nil {
		t.Fatalf("expected an error decoding an out-of-range column")
	}
}

func TestTextBlobParitySelectsKind(t *testing.T) {
	text := Encode([]Value{Text("ab")})
	blob := Encode([]Value{Blob([]byte("ab"))})

	textDecoded, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode text: %v", err)
	}
	blobDecoded, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode blob: %v", err)
	}

	if textDecoded[0].Kind != KindText {
		t.Fatalf("expected TEXT, got %v", textDecoded[0].Kind)
	}
	if blobDecoded[0].Kind != KindBlob {
		t.Fatalf("expected BLOB, got %v", blobDecoded[0].Kind)
	}
}
