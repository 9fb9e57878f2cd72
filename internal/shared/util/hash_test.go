package util

import "testing"

func TestHashUserKeyStable(t *testing.T) {
	a := HashUserKey("guest:abc")
	b := HashUserKey("guest:abc")
	if a != b {
		t.Fatalf("expected stable hash, got %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestContentHashIgnoresWhitespaceAndCase(t *testing.T) {
	a := ContentHash("Sum  Insured:\n5 Lakh", "v1")
	b := ContentHash("sum insured: 5 lakh", "v1")
	if a != b {
		t.Fatalf("expected normalized texts to hash equal")
	}
}

func TestContentHashVersioned(t *testing.T) {
	a := ContentHash("same text", "v1")
	b := ContentHash("same text", "v2")
	if a == b {
		t.Fatalf("expected different versions to produce different keys")
	}
}
