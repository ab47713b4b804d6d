package scroll

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewProducesCanonicalData(t *testing.T) {
	sc, err := New("/wallet/balance", map[string]int{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if sc.Type != GenericType {
		t.Fatalf("expected generic type, got %s", sc.Type)
	}
	var got map[string]int
	if err := sc.DataAs(&got); err != nil {
		t.Fatalf("DataAs: %v", err)
	}
	if got["a"] != 1 || got["b"] != 2 {
		t.Fatalf("unexpected data: %v", got)
	}
}

func TestComputeHashDeterministic(t *testing.T) {
	a, err := Typed("/k", map[string]string{"x": "1"}, "t@v1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Typed("/k", map[string]string{"x": "1"}, "t@v1")
	if err != nil {
		t.Fatal(err)
	}
	if a.ComputeHash() != b.ComputeHash() {
		t.Fatal("identical key/type/data must hash identically")
	}

	c, err := Typed("/k", map[string]string{"x": "2"}, "t@v1")
	if err != nil {
		t.Fatal(err)
	}
	if a.ComputeHash() == c.ComputeHash() {
		t.Fatal("different data must hash differently")
	}
}

func TestComputeHashIgnoresMetadata(t *testing.T) {
	sc, err := New("/k", "v")
	if err != nil {
		t.Fatal(err)
	}
	h1 := sc.ComputeHash()
	sc.Metadata.Version = 42
	if sc.ComputeHash() != h1 {
		t.Fatal("hash must not depend on metadata")
	}
}

func TestFinalizePreservesCreatedAtAcrossWrites(t *testing.T) {
	sc, err := New("/k", "v")
	if err != nil {
		t.Fatal(err)
	}
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sc = sc.Finalize(t0, nil)
	if sc.Metadata.CreatedAt == nil || !sc.Metadata.CreatedAt.Equal(t0) {
		t.Fatalf("expected created_at %v, got %v", t0, sc.Metadata.CreatedAt)
	}

	t1 := t0.Add(time.Hour)
	sc = sc.Finalize(t1, sc.Metadata.CreatedAt)
	if !sc.Metadata.CreatedAt.Equal(t0) {
		t.Fatalf("created_at must survive a second write, got %v", sc.Metadata.CreatedAt)
	}
	if !sc.Metadata.UpdatedAt.Equal(t1) {
		t.Fatalf("updated_at must advance to %v, got %v", t1, sc.Metadata.UpdatedAt)
	}
}

func TestWithVersionAndIncrementVersion(t *testing.T) {
	sc, _ := New("/k", "v")
	sc = sc.WithVersion(5)
	if sc.Metadata.Version != 5 {
		t.Fatalf("expected version 5, got %d", sc.Metadata.Version)
	}
	sc = sc.IncrementVersion()
	if sc.Metadata.Version != 6 {
		t.Fatalf("expected version 6, got %d", sc.Metadata.Version)
	}
}

func TestMarshalCanonicalAcceptsRawMessage(t *testing.T) {
	sc, err := New("/k", json.RawMessage(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(sc.Data) != `{"a":1,"b":2}` {
		t.Fatalf("expected sorted keys, got %s", sc.Data)
	}
}
