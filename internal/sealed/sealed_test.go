package sealed

import (
	"strings"
	"testing"

	"github.com/obiverse/beewallet-core/internal/scroll"
)

func TestSealUnsealRoundTripWithPassword(t *testing.T) {
	sc, err := scroll.New("/wallet/note", map[string]string{"memo": "for rent"})
	if err != nil {
		t.Fatal(err)
	}
	env, err := Seal(sc, "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if !env.HasPassword {
		t.Fatal("expected HasPassword to be true")
	}
	got, err := Unseal(env, "s3cret")
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if got.Key != sc.Key {
		t.Fatalf("expected key %q, got %q", sc.Key, got.Key)
	}
}

func TestSealUnsealRoundTripWithoutPassword(t *testing.T) {
	sc, err := scroll.New("/wallet/note", "hello")
	if err != nil {
		t.Fatal(err)
	}
	env, err := Seal(sc, "")
	if err != nil {
		t.Fatal(err)
	}
	if env.HasPassword {
		t.Fatal("expected HasPassword to be false")
	}
	got, err := Unseal(env, "")
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if got.Key != sc.Key {
		t.Fatalf("expected key %q, got %q", sc.Key, got.Key)
	}
}

func TestUnsealWithPasswordRequiresPassword(t *testing.T) {
	sc, _ := scroll.New("/k", "v")
	env, err := Seal(sc, "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unseal(env, ""); err == nil {
		t.Fatal("expected an error when unsealing a password-protected scroll without one")
	}
	if _, err := Unseal(env, "wrong"); err == nil {
		t.Fatal("expected an error when unsealing with the wrong password")
	}
}

func TestSealRejectsOversizedScroll(t *testing.T) {
	big := strings.Repeat("x", MaxSealedSize)
	sc, err := scroll.New("/k", big)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Seal(sc, ""); err == nil {
		t.Fatal("expected an error for a scroll exceeding MaxSealedSize")
	}
}

func TestRequiresPassword(t *testing.T) {
	sc, _ := scroll.New("/k", "v")
	withPass, _ := Seal(sc, "x")
	withoutPass, _ := Seal(sc, "")
	if !RequiresPassword(withPass) {
		t.Fatal("expected RequiresPassword true for a password-sealed scroll")
	}
	if RequiresPassword(withoutPass) {
		t.Fatal("expected RequiresPassword false for an unprotected scroll")
	}
}

func TestURIRoundTripCurrentScheme(t *testing.T) {
	sc, _ := scroll.New("/k", "v")
	env, err := Seal(sc, "pw")
	if err != nil {
		t.Fatal(err)
	}
	uri, err := ToURI(env)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(uri, "beescroll://v1/") {
		t.Fatalf("expected beescroll://v1/ prefix, got %q", uri)
	}
	back, err := FromURI(uri)
	if err != nil {
		t.Fatal(err)
	}
	if back.Ciphertext != env.Ciphertext {
		t.Fatal("expected ciphertext preserved through the URI round trip")
	}
}

func TestFromURIAcceptsLegacyScheme(t *testing.T) {
	sc, _ := scroll.New("/k", "v")
	env, err := Seal(sc, "")
	if err != nil {
		t.Fatal(err)
	}
	uri, err := ToURI(env)
	if err != nil {
		t.Fatal(err)
	}
	legacy := "beenote://v1/" + strings.TrimPrefix(uri, "beescroll://v1/")
	back, err := FromURI(legacy)
	if err != nil {
		t.Fatalf("FromURI legacy: %v", err)
	}
	if back.Ciphertext != env.Ciphertext {
		t.Fatal("expected ciphertext preserved through the legacy URI")
	}
}

func TestFromURIRejectsGarbage(t *testing.T) {
	if _, err := FromURI("not a uri or json at all {{{"); err == nil {
		t.Fatal("expected an error for unrecognized input")
	}
}
