package cache

import (
	"testing"
	"time"
)

func TestGetMissingKey(t *testing.T) {
	s := New(4, time.Minute)
	if _, ok := s.Get("nope"); ok {
		t.Fatalf("expected miss for absent key")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := New(4, time.Minute)
	s.Set("k", []byte(`{"a":1}`), "v1")

	entry, ok := s.Get("k")
	if !ok {
		t.Fatalf("expected hit")
	}
	if string(entry.Value) != `{"a":1}` {
		t.Fatalf("unexpected value %q", entry.Value)
	}
	if entry.Version != "v1" {
		t.Fatalf("unexpected version %q", entry.Version)
	}
}

func TestTTLExpiry(t *testing.T) {
	s := New(4, time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }
	s.Set("k", []byte("x"), "v1")

	s.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, ok := s.Get("k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if s.Len() != 0 {
		t.Fatalf("expected expired entry to be removed, len=%d", s.Len())
	}
}

func TestLRUEviction(t *testing.T) {
	s := New(2, 0)
	s.Set("a", []byte("1"), "v1")
	s.Set("b", []byte("2"), "v1")

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := s.Get("a"); !ok {
		t.Fatalf("expected hit for a")
	}
	s.Set("c", []byte("3"), "v1")

	if _, ok := s.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if _, ok := s.Get("a"); !ok {
		t.Fatalf("expected a to survive")
	}
	if _, ok := s.Get("c"); !ok {
		t.Fatalf("expected c to be present")
	}
}

func TestSetOverwrites(t *testing.T) {
	s := New(2, 0)
	s.Set("k", []byte("old"), "v1")
	s.Set("k", []byte("new"), "v2")

	entry, ok := s.Get("k")
	if !ok {
		t.Fatalf("expected hit")
	}
	if string(entry.Value) != "new" || entry.Version != "v2" {
		t.Fatalf("expected overwrite, got %q %q", entry.Value, entry.Version)
	}
	if s.Len() != 1 {
		t.Fatalf("expected single entry, len=%d", s.Len())
	}
}
