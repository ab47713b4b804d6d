package memns

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/obiverse/beewallet-core/internal/nineerr"
)

func TestWriteThenRead(t *testing.T) {
	n := New()
	if _, err := n.Write("/wallet/balance", json.RawMessage(`{"sats":5}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sc, ok, err := n.Read("/wallet/balance")
	if err != nil || !ok {
		t.Fatalf("Read = %v, %v, %v", sc, ok, err)
	}
	var bal struct{ Sats int }
	if err := sc.DataAs(&bal); err != nil || bal.Sats != 5 {
		t.Fatalf("unexpected balance: %+v, %v", bal, err)
	}
}

func TestWriteIncrementsVersionAndPreservesCreatedAt(t *testing.T) {
	n := New()
	first, err := n.Write("/k", json.RawMessage(`1`))
	if err != nil {
		t.Fatal(err)
	}
	if first.Metadata.Version != 1 {
		t.Fatalf("expected version 1, got %d", first.Metadata.Version)
	}
	time.Sleep(time.Millisecond)
	second, err := n.Write("/k", json.RawMessage(`2`))
	if err != nil {
		t.Fatal(err)
	}
	if second.Metadata.Version != 2 {
		t.Fatalf("expected version 2, got %d", second.Metadata.Version)
	}
	if !second.Metadata.CreatedAt.Equal(*first.Metadata.CreatedAt) {
		t.Fatal("created_at must be preserved across writes to the same key")
	}
}

func TestReadMissingIsNotAnError(t *testing.T) {
	n := New()
	_, ok, err := n.Read("/nothing/here")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a missing key")
	}
}

func TestListRespectsSegmentBoundary(t *testing.T) {
	n := New()
	n.Write("/wallet/balance", json.RawMessage(`1`))
	n.Write("/walletx/other", json.RawMessage(`1`))

	keys, err := n.List("/wallet")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "/wallet/balance" {
		t.Fatalf("expected only /wallet/balance, got %v", keys)
	}
}

func TestWatchDispatchesMatchingWrites(t *testing.T) {
	n := New()
	recv, err := n.Watch("/wallet/*")
	if err != nil {
		t.Fatal(err)
	}
	defer recv.Close()

	if _, err := n.Write("/wallet/balance", json.RawMessage(`1`)); err != nil {
		t.Fatal(err)
	}
	if _, err := n.Write("/other/key", json.RawMessage(`1`)); err != nil {
		t.Fatal(err)
	}

	sc, ok := recv.TryRecv()
	if !ok || sc.Key != "/wallet/balance" {
		t.Fatalf("expected /wallet/balance dispatched, got %v, %v", sc, ok)
	}
	if _, ok := recv.TryRecv(); ok {
		t.Fatal("non-matching write must not be dispatched")
	}
}

func TestWatchPrunedAfterReceiverClose(t *testing.T) {
	n := New()
	recv, err := n.Watch("/**")
	if err != nil {
		t.Fatal(err)
	}
	recv.Close()

	if _, err := n.Write("/k", json.RawMessage(`1`)); err != nil {
		t.Fatal(err)
	}
	n.mu.RLock()
	count := len(n.watchers)
	n.mu.RUnlock()
	if count != 0 {
		t.Fatalf("expected the dead watcher pruned on next dispatch, got %d live", count)
	}
}

func TestClosedNamespaceRejectsOperations(t *testing.T) {
	n := New()
	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := n.Read("/k"); !errors.Is(err, nineerr.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := n.Write("/k", json.RawMessage(`1`)); !errors.Is(err, nineerr.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close must be idempotent, got %v", err)
	}
}
