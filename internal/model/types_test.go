package model

import (
	"math/big"
	"testing"
)

func TestCanonicalizeRequestIDIdempotent(t *testing.T) {
	inputs := []string{
		"AB0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e01",
		"0xAB0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e01",
		"0xab0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e01",
	}
	for _, in := range inputs {
		once := CanonicalizeRequestID(in)
		twice := CanonicalizeRequestID(once)
		if once != twice {
			t.Fatalf("canonicalize not idempotent for %q: %q != %q", in, once, twice)
		}
		if once != "0xab0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e01" {
			t.Fatalf("unexpected canonical form: %q", once)
		}
	}
}

func TestCanonicalizeRequestIDCaseInsensitive(t *testing.T) {
	a := CanonicalizeRequestID("0xAB01")
	b := CanonicalizeRequestID("0xab01")
	if a != b {
		t.Fatalf("expected case-insensitive match, got %q vs %q", a, b)
	}
}

func TestNormalizeChainIDIdempotentAndMasked(t *testing.T) {
	big1 := new(big.Int).Lsh(big.NewInt(1), 100) // way beyond 64 bits
	big1.Add(big1, big.NewInt(31337))

	once := NormalizeChainID(big1)
	twice := NormalizeChainID(new(big.Int).SetUint64(once))

	if once != twice {
		t.Fatalf("normalize not idempotent: %d != %d", once, twice)
	}

	want := new(big.Int).Mod(big1, new(big.Int).Lsh(big.NewInt(1), 64)).Uint64()
	if once != want {
		t.Fatalf("normalize mismatch: got %d want %d", once, want)
	}
}

func TestNormalizeChainIDNil(t *testing.T) {
	if got := NormalizeChainID(nil); got != 0 {
		t.Fatalf("expected 0 for nil, got %d", got)
	}
}

func TestRequestIDToBytes32RoundTrip(t *testing.T) {
	id := CanonicalizeRequestID("ab0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e01")
	b, err := RequestIDToBytes32(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back := CanonicalizeRequestIDBytes(b)
	if back != id {
		t.Fatalf("round trip mismatch: %q != %q", back, id)
	}
}

func TestRequestIDToBytes32BadLength(t *testing.T) {
	if _, err := RequestIDToBytes32("0xabcd"); err == nil {
		t.Fatal("expected error for short request id")
	}
}
