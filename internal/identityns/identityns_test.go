package identityns

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/obiverse/beewallet-core/internal/identity"
	"github.com/obiverse/beewallet-core/internal/nineerr"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestWriteMnemonicDefaultsTo128Bits(t *testing.T) {
	n := New()
	sc, err := n.Write("/mnemonic", nil)
	if err != nil {
		t.Fatalf("Write(/mnemonic): %v", err)
	}
	var resp struct{ Mnemonic string }
	if err := sc.DataAs(&resp); err != nil {
		t.Fatal(err)
	}
	if !identity.ValidateMnemonic(resp.Mnemonic) {
		t.Fatalf("expected a valid mnemonic, got %q", resp.Mnemonic)
	}
}

func TestWriteMnemonicRespectsEntropyBits(t *testing.T) {
	n := New()
	sc, err := n.Write("/mnemonic", json.RawMessage(`{"entropyBits":256}`))
	if err != nil {
		t.Fatal(err)
	}
	var resp struct{ Mnemonic string }
	sc.DataAs(&resp)
	words := len(splitWords(resp.Mnemonic))
	if words != 24 {
		t.Fatalf("expected a 24-word mnemonic for 256 bits of entropy, got %d words", words)
	}
}

func splitWords(s string) []string {
	var words []string
	cur := ""
	for _, r := range s {
		if r == ' ' {
			if cur != "" {
				words = append(words, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		words = append(words, cur)
	}
	return words
}

func TestWriteValidate(t *testing.T) {
	n := New()
	sc, err := n.Write("/validate", json.RawMessage(`{"mnemonic":"`+testMnemonic+`"}`))
	if err != nil {
		t.Fatal(err)
	}
	var resp struct{ Valid bool }
	sc.DataAs(&resp)
	if !resp.Valid {
		t.Fatal("expected the known-good test mnemonic to validate")
	}

	sc, err = n.Write("/validate", json.RawMessage(`{"mnemonic":"not a real mnemonic"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Valid = true
	sc.DataAs(&resp)
	if resp.Valid {
		t.Fatal("expected garbage input not to validate")
	}
}

func TestWriteMobinumberDerivesIdentifier(t *testing.T) {
	n := New()
	sc, err := n.Write("/mobinumber", json.RawMessage(`{"mnemonic":"`+testMnemonic+`"}`))
	if err != nil {
		t.Fatalf("Write(/mobinumber): %v", err)
	}
	var resp struct {
		Display  string
		Extended string
		Long     string
		Full     string
	}
	if err := sc.DataAs(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Full) != 21 || len(resp.Display) != 12 {
		t.Fatalf("unexpected mobi fields: %+v", resp)
	}
}

func TestWriteMobinumberRejectsBadMnemonic(t *testing.T) {
	n := New()
	if _, err := n.Write("/mobinumber", json.RawMessage(`{"mnemonic":"garbage"}`)); err == nil {
		t.Fatal("expected an error for an invalid mnemonic")
	}
}

func TestReadReturnsLastCachedResponseAndVersionIncrements(t *testing.T) {
	n := New()
	if _, err := n.Write("/validate", json.RawMessage(`{"mnemonic":"`+testMnemonic+`"}`)); err != nil {
		t.Fatal(err)
	}
	first, ok, err := n.Read("/validate")
	if err != nil || !ok {
		t.Fatalf("Read(/validate) = %v, %v, %v", first, ok, err)
	}
	if first.Metadata.Version != 1 {
		t.Fatalf("expected version 1, got %d", first.Metadata.Version)
	}

	if _, err := n.Write("/validate", json.RawMessage(`{"mnemonic":"garbage"}`)); err != nil {
		t.Fatal(err)
	}
	second, ok, err := n.Read("/validate")
	if err != nil || !ok {
		t.Fatal("expected cached response after second write")
	}
	if second.Metadata.Version != 2 {
		t.Fatalf("expected version 2, got %d", second.Metadata.Version)
	}
}

func TestReadMissingPathIsNotAnError(t *testing.T) {
	n := New()
	_, ok, err := n.Read("/mnemonic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false before any write")
	}
}

func TestWriteUnknownPathIsUnavailable(t *testing.T) {
	n := New()
	if _, err := n.Write("/bogus", nil); !errors.Is(err, nineerr.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestListReturnsCachedPaths(t *testing.T) {
	n := New()
	n.Write("/mnemonic", nil)
	n.Write("/validate", json.RawMessage(`{"mnemonic":"`+testMnemonic+`"}`))
	keys, err := n.List("/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 cached paths, got %v", keys)
	}
}

func TestWatchIsUnavailable(t *testing.T) {
	n := New()
	if _, err := n.Watch("/mnemonic"); !errors.Is(err, nineerr.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClosedNamespaceRejectsOperations(t *testing.T) {
	n := New()
	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := n.Read("/mnemonic"); !errors.Is(err, nineerr.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := n.Write("/mnemonic", nil); !errors.Is(err, nineerr.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
