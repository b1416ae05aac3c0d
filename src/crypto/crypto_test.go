package crypto

import (
	"encoding/hex"
	"testing"
)

func TestSHA256Hex(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	if got := SHA256Hex([]byte("abc")); got != want {
		t.Fatalf("SHA256Hex(abc) = %s, want %s", got, want)
	}

	if got := SHA256Hex([]byte("a"), []byte("b"), []byte("c")); got != want {
		t.Fatalf("split input should hash like the concatenation, got %s", got)
	}

	if got := hex.EncodeToString(SHA256([]byte("abc"))); got != want {
		t.Fatalf("SHA256(abc) = %s, want %s", got, want)
	}
}
