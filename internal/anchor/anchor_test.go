package anchor

import (
	"testing"

	"github.com/obiverse/beewallet-core/internal/scroll"
)

func TestCreateProducesVerifiableAnchor(t *testing.T) {
	sc, err := scroll.New("/wallet/balance", map[string]int{"sats": 5})
	if err != nil {
		t.Fatal(err)
	}
	a, err := Create(sc, "checkpoint")
	if err != nil {
		t.Fatal(err)
	}
	if a.Label != "checkpoint" {
		t.Fatalf("expected label preserved, got %q", a.Label)
	}
	if !Verify(a) {
		t.Fatal("freshly created anchor must verify")
	}
}

func TestCreateIDsAreUnique(t *testing.T) {
	sc, _ := scroll.New("/k", "v")
	a1, err := Create(sc, "")
	if err != nil {
		t.Fatal(err)
	}
	a2, err := Create(sc, "")
	if err != nil {
		t.Fatal(err)
	}
	if a1.ID == a2.ID {
		t.Fatal("two anchors of the same scroll must still get distinct ids")
	}
}

func TestVerifyDetectsTamperedScroll(t *testing.T) {
	sc, _ := scroll.New("/k", "v")
	a, err := Create(sc, "")
	if err != nil {
		t.Fatal(err)
	}
	a.Scroll.Data = []byte(`"tampered"`)
	if Verify(a) {
		t.Fatal("expected Verify to fail on a tampered scroll")
	}
}

func TestEquivalentIgnoresIDAndTimestamp(t *testing.T) {
	sc, _ := scroll.New("/k", "v")
	a1, err := Create(sc, "one")
	if err != nil {
		t.Fatal(err)
	}
	a2, err := Create(sc, "two")
	if err != nil {
		t.Fatal(err)
	}
	if !Equivalent(a1, a2) {
		t.Fatal("anchors of identical scroll content must be equivalent regardless of label/id")
	}
}

func TestCreateWithDescription(t *testing.T) {
	sc, _ := scroll.New("/k", "v")
	a, err := CreateWithDescription(sc, "label", "a free text note")
	if err != nil {
		t.Fatal(err)
	}
	if a.Description != "a free text note" {
		t.Fatalf("expected description preserved, got %q", a.Description)
	}
}

func TestExtractReturnsEmbeddedScroll(t *testing.T) {
	sc, _ := scroll.New("/k", "v")
	a, err := Create(sc, "")
	if err != nil {
		t.Fatal(err)
	}
	if Extract(a).Key != "/k" {
		t.Fatalf("expected extracted scroll key /k, got %q", Extract(a).Key)
	}
}
