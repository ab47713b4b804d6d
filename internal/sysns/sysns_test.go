package sysns

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/scroll"
)

type fakeController struct {
	connected  bool
	network    string
	failNextOp bool
}

func (f *fakeController) Connect() error {
	if f.failNextOp {
		return errors.New("boom")
	}
	f.connected = true
	return nil
}

func (f *fakeController) Disconnect() error {
	if f.failNextOp {
		return errors.New("boom")
	}
	f.connected = false
	return nil
}

func (f *fakeController) Connected() bool { return f.connected }
func (f *fakeController) Network() string { return f.network }

func TestReadStatusReflectsController(t *testing.T) {
	ctrl := &fakeController{network: "mainnet"}
	n := New(ctrl)

	sc, ok, err := n.Read("/status")
	if err != nil || !ok {
		t.Fatalf("Read(/status) = %v, %v, %v", sc, ok, err)
	}
	var status struct {
		Connected bool
		Network   string
		Backend   string
	}
	if err := sc.DataAs(&status); err != nil {
		t.Fatal(err)
	}
	if status.Connected || status.Network != "mainnet" || status.Backend != "sysns" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestReadInfoReturnsVersionAndStartedAt(t *testing.T) {
	n := New(&fakeController{})
	sc, ok, err := n.Read("/info")
	if err != nil || !ok {
		t.Fatalf("Read(/info) = %v, %v, %v", sc, ok, err)
	}
	var info struct {
		Version   string
		StartedAt string
	}
	if err := sc.DataAs(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != Version || info.StartedAt == "" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestReadUnknownPathIsNotAnError(t *testing.T) {
	n := New(&fakeController{})
	_, ok, err := n.Read("/nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for an undefined path")
	}
}

func TestWriteConnectAndDisconnectToggleController(t *testing.T) {
	ctrl := &fakeController{}
	n := New(ctrl)

	sc, err := n.Write("/connect", nil)
	if err != nil {
		t.Fatalf("Write(/connect): %v", err)
	}
	if !ctrl.connected {
		t.Fatal("expected controller connected after /connect")
	}
	if sc.Key != "/connect" {
		t.Fatalf("expected result re-keyed to /connect, got %q", sc.Key)
	}

	if _, err := n.Write("/disconnect", nil); err != nil {
		t.Fatalf("Write(/disconnect): %v", err)
	}
	if ctrl.connected {
		t.Fatal("expected controller disconnected after /disconnect")
	}
}

func TestWriteConnectFailurePropagatesAsErrConnection(t *testing.T) {
	ctrl := &fakeController{failNextOp: true}
	n := New(ctrl)
	if _, err := n.Write("/connect", nil); !errors.Is(err, nineerr.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestWriteUnknownPathIsUnavailable(t *testing.T) {
	n := New(&fakeController{})
	if _, err := n.Write("/bogus", json.RawMessage(`{}`)); !errors.Is(err, nineerr.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestWriteScrollDelegatesToWrite(t *testing.T) {
	ctrl := &fakeController{}
	n := New(ctrl)
	sc, err := scroll.New("/connect", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := n.WriteScroll(sc); err != nil {
		t.Fatalf("WriteScroll: %v", err)
	}
	if !ctrl.connected {
		t.Fatal("expected controller connected via WriteScroll")
	}
}

func TestListReturnsFixedOntologyFilteredByPrefix(t *testing.T) {
	n := New(&fakeController{})
	keys, err := n.List("/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 4 {
		t.Fatalf("expected 4 fixed paths, got %v", keys)
	}
}

func TestWatchIsUnavailable(t *testing.T) {
	n := New(&fakeController{})
	if _, err := n.Watch("/status"); !errors.Is(err, nineerr.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClosedNamespaceRejectsOperations(t *testing.T) {
	n := New(&fakeController{})
	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := n.Read("/status"); !errors.Is(err, nineerr.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := n.Write("/connect", nil); !errors.Is(err, nineerr.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
