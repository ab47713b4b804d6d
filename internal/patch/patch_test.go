package patch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/obiverse/beewallet-core/internal/nineerr"
)

func TestCreateGenesisIsWholeDocumentReplace(t *testing.T) {
	ops, err := Create(nil, json.RawMessage(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].Op != OpReplace || ops[0].Path != "" {
		t.Fatalf("expected a single root replace, got %+v", ops)
	}
}

func TestCreateAndApplyRoundTrip(t *testing.T) {
	oldData := json.RawMessage(`{"a":1,"b":{"c":2}}`)
	newData := json.RawMessage(`{"a":1,"b":{"c":3},"d":4}`)

	ops, err := Create(oldData, newData)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Apply(oldData, ops)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var gotV, wantV interface{}
	json.Unmarshal(got, &gotV)
	json.Unmarshal(newData, &wantV)
	gotJSON, _ := json.Marshal(gotV)
	wantJSON, _ := json.Marshal(wantV)
	if string(gotJSON) != string(wantJSON) {
		t.Fatalf("round trip mismatch: got %s, want %s", gotJSON, wantJSON)
	}
}

func TestCreateRemovesDroppedKeys(t *testing.T) {
	ops, err := Create(json.RawMessage(`{"a":1,"b":2}`), json.RawMessage(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, op := range ops {
		if op.Op == OpRemove && op.Path == "/b" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a remove at /b, got %+v", ops)
	}
}

func TestCreateEscapesTildeAndSlashInKeys(t *testing.T) {
	ops, err := Create(nil, json.RawMessage(`{"a/b":1}`))
	if err != nil {
		t.Fatal(err)
	}
	// Genesis is a single root replace, so exercise a non-genesis diff to see escaping.
	ops, err = Create(json.RawMessage(`{}`), json.RawMessage(`{"a/b":1,"c~d":2}`))
	if err != nil {
		t.Fatal(err)
	}
	paths := map[string]bool{}
	for _, op := range ops {
		paths[op.Path] = true
	}
	if !paths["/a~1b"] || !paths["/c~0d"] {
		t.Fatalf("expected escaped pointer tokens, got %+v", ops)
	}
}

func TestApplyTestOpFailureReturnsErrTestFailed(t *testing.T) {
	ops := []Op{{Op: OpTest, Path: "/a", Value: json.RawMessage(`99`)}}
	_, err := Apply(json.RawMessage(`{"a":1}`), ops)
	if !errors.Is(err, nineerr.ErrTestFailed) {
		t.Fatalf("expected ErrTestFailed, got %v", err)
	}
}

func TestApplyMoveAndCopy(t *testing.T) {
	doc := json.RawMessage(`{"a":1}`)
	ops := []Op{
		{Op: OpCopy, From: "/a", Path: "/b"},
		{Op: OpMove, From: "/a", Path: "/c"},
	}
	got, err := Apply(doc, ops)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	json.Unmarshal(got, &m)
	if m["a"] != nil {
		t.Fatalf("expected /a removed after move, got %+v", m)
	}
	if m["b"] != float64(1) || m["c"] != float64(1) {
		t.Fatalf("expected b and c set to 1, got %+v", m)
	}
}

func TestHashAndVerify(t *testing.T) {
	oldData := json.RawMessage(`{"a":1}`)
	newData := json.RawMessage(`{"a":2}`)
	ops, err := Create(oldData, newData)
	if err != nil {
		t.Fatal(err)
	}
	wantHash := Hash(newData)
	ok, err := Verify(oldData, ops, wantHash)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected Verify to succeed for a correctly derived hash")
	}

	ok, err = Verify(oldData, ops, Hash(json.RawMessage(`{"a":999}`)))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected Verify to fail for a mismatched hash")
	}
}

func TestApplyUnknownOpIsRejected(t *testing.T) {
	ops := []Op{{Op: "bogus", Path: "/a"}}
	if _, err := Apply(json.RawMessage(`{}`), ops); !errors.Is(err, nineerr.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestApplyAddToArrayAppend(t *testing.T) {
	doc := json.RawMessage(`{"a":[1,2]}`)
	ops := []Op{{Op: OpAdd, Path: "/a/-", Value: json.RawMessage(`3`)}}
	got, err := Apply(doc, ops)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	json.Unmarshal(got, &m)
	arr := m["a"].([]interface{})
	if len(arr) != 3 || arr[2] != float64(3) {
		t.Fatalf("expected append to array, got %+v", arr)
	}
}

func TestApplyRemoveMissingKeyFails(t *testing.T) {
	ops := []Op{{Op: OpRemove, Path: "/missing"}}
	if _, err := Apply(json.RawMessage(`{}`), ops); !errors.Is(err, nineerr.ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}
}

func TestApplyPointerMustStartWithSlash(t *testing.T) {
	ops := []Op{{Op: OpReplace, Path: "bad", Value: json.RawMessage(`1`)}}
	if _, err := Apply(json.RawMessage(`{}`), ops); !errors.Is(err, nineerr.ErrInvalidPointer) {
		t.Fatalf("expected ErrInvalidPointer, got %v", err)
	}
}
