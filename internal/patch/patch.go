// Package patch computes and applies RFC 6902-style JSON patches between
// scroll states, and provides the RFC 6901 JSON pointer machinery the store
// (internal/store) uses to reconstruct history.
package patch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/obiverse/beewallet-core/internal/nineerr"
)

// OpType is one of the six JSON Patch operation kinds.
type OpType string

const (
	OpAdd     OpType = "add"
	OpRemove  OpType = "remove"
	OpReplace OpType = "replace"
	OpMove    OpType = "move"
	OpCopy    OpType = "copy"
	OpTest    OpType = "test"
)

// Op is a single JSON Patch operation at a JSON pointer.
type Op struct {
	Op    OpType          `json:"op"`
	Path  string          `json:"path"`
	From  string          `json:"from,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Patch is the unit of change persisted by the store between two scroll
// states.
type Patch struct {
	Key       string    `json:"key"`
	Ops       []Op      `json:"ops"`
	Parent    string    `json:"parent,omitempty"` // sha256 of previous state; absent for genesis
	Hash      string    `json:"hash"`              // sha256 of resulting state
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq"`
}

// Create computes the ordered list of operations that transforms oldData
// into newData. A nil oldData produces a single genesis replace-at-root.
func Create(oldData, newData json.RawMessage) ([]Op, error) {
	if oldData == nil {
		return []Op{{Op: OpReplace, Path: "", Value: newData}}, nil
	}

	var oldV, newV interface{}
	if err := json.Unmarshal(oldData, &oldV); err != nil {
		return nil, fmt.Errorf("%w: decode old state: %v", nineerr.ErrInternal, err)
	}
	if err := json.Unmarshal(newData, &newV); err != nil {
		return nil, fmt.Errorf("%w: decode new state: %v", nineerr.ErrInternal, err)
	}

	var ops []Op
	diffValue("", oldV, newV, &ops)
	return ops, nil
}

// diffValue recursively computes ops transforming old into new at pointer
// prefix. Objects recurse key-by-key; arrays and primitives (or a type
// mismatch) are replaced wholesale — arrays are intentionally treated as
// values to avoid LCS complexity.
func diffValue(prefix string, old, new interface{}, ops *[]Op) {
	oldMap, oldIsMap := old.(map[string]interface{})
	newMap, newIsMap := new.(map[string]interface{})

	if oldIsMap && newIsMap {
		keys := make(map[string]struct{}, len(oldMap)+len(newMap))
		for k := range oldMap {
			keys[k] = struct{}{}
		}
		for k := range newMap {
			keys[k] = struct{}{}
		}
		sorted := make([]string, 0, len(keys))
		for k := range keys {
			sorted = append(sorted, k)
		}
		sort.Strings(sorted)

		for _, k := range sorted {
			ov, inOld := oldMap[k]
			nv, inNew := newMap[k]
			ptr := prefix + "/" + escapeToken(k)
			switch {
			case inOld && !inNew:
				*ops = append(*ops, Op{Op: OpRemove, Path: ptr})
			case !inOld && inNew:
				raw, _ := json.Marshal(nv)
				*ops = append(*ops, Op{Op: OpAdd, Path: ptr, Value: raw})
			default:
				diffValue(ptr, ov, nv, ops)
			}
		}
		return
	}

	if !valuesEqual(old, new) {
		raw, _ := json.Marshal(new)
		path := prefix
		*ops = append(*ops, Op{Op: OpReplace, Path: path, Value: raw})
	}
}

func valuesEqual(a, b interface{}) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}

func escapeToken(t string) string {
	r := make([]byte, 0, len(t))
	for i := 0; i < len(t); i++ {
		switch t[i] {
		case '~':
			r = append(r, '~', '0')
		case '/':
			r = append(r, '~', '1')
		default:
			r = append(r, t[i])
		}
	}
	return string(r)
}

// Apply executes ops in order against doc and returns the resulting
// document. A failed `test` aborts with ErrTestFailed.
func Apply(doc json.RawMessage, ops []Op) (json.RawMessage, error) {
	var cur interface{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &cur); err != nil {
			return nil, fmt.Errorf("%w: decode document: %v", nineerr.ErrInternal, err)
		}
	}

	for _, op := range ops {
		tokens, err := parsePointer(op.Path)
		if err != nil {
			return nil, err
		}
		switch op.Op {
		case OpAdd, OpReplace:
			var v interface{}
			if len(op.Value) > 0 {
				if err := json.Unmarshal(op.Value, &v); err != nil {
					return nil, fmt.Errorf("%w: decode op value: %v", nineerr.ErrInternal, err)
				}
			}
			cur, err = setAtPointer(cur, tokens, v)
			if err != nil {
				return nil, err
			}
		case OpRemove:
			cur, err = removeAtPointer(cur, tokens)
			if err != nil {
				return nil, err
			}
		case OpMove:
			fromTokens, err := parsePointer(op.From)
			if err != nil {
				return nil, err
			}
			val, err := getAtPointer(cur, fromTokens)
			if err != nil {
				return nil, err
			}
			cur, err = removeAtPointer(cur, fromTokens)
			if err != nil {
				return nil, err
			}
			cur, err = setAtPointer(cur, tokens, val)
			if err != nil {
				return nil, err
			}
		case OpCopy:
			fromTokens, err := parsePointer(op.From)
			if err != nil {
				return nil, err
			}
			val, err := getAtPointer(cur, fromTokens)
			if err != nil {
				return nil, err
			}
			cur, err = setAtPointer(cur, tokens, val)
			if err != nil {
				return nil, err
			}
		case OpTest:
			var want interface{}
			if len(op.Value) > 0 {
				if err := json.Unmarshal(op.Value, &want); err != nil {
					return nil, fmt.Errorf("%w: decode test value: %v", nineerr.ErrInternal, err)
				}
			}
			got, err := getAtPointer(cur, tokens)
			if err != nil {
				return nil, err
			}
			if !valuesEqual(got, want) {
				return nil, fmt.Errorf("%w: at %q", nineerr.ErrTestFailed, op.Path)
			}
		default:
			return nil, fmt.Errorf("%w: unknown op %q", nineerr.ErrInvalidData, op.Op)
		}
	}

	return json.Marshal(cur)
}

// Hash returns the SHA-256 hex digest of a JSON document, used for the
// patch chain's parent/hash linkage.
func Hash(doc json.RawMessage) string {
	h := sha256.Sum256(doc)
	return hex.EncodeToString(h[:])
}

// Verify reports whether applying ops to oldData reproduces a document
// whose hash equals wantHash.
func Verify(oldData json.RawMessage, ops []Op, wantHash string) (bool, error) {
	result, err := Apply(oldData, ops)
	if err != nil {
		return false, err
	}
	return Hash(result) == wantHash, nil
}
