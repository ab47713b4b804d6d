// Package scroll implements the universal 9S data envelope: a hierarchical
// key, a schema type tag, rich-but-optional metadata, and opaque JSON data.
// The core never interprets the data field; only the key, type, and content
// hash participate in storage decisions.
package scroll

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Tense captures whether a linguistic-triple metadata entry describes
// something that already happened, is happening, or will happen.
type Tense string

const (
	TensePast    Tense = "past"
	TensePresent Tense = "present"
	TenseFuture  Tense = "future"
)

// Metadata carries the record's timestamps, lifecycle, and optional
// linguistic/taxonomic annotation, plus an open-ended extension map for
// anything a caller wants to tag without changing the Scroll schema.
type Metadata struct {
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	SyncedAt  *time.Time `json:"synced_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	Deleted bool   `json:"deleted"`
	Version uint64 `json:"version"`
	Hash    string `json:"hash,omitempty"`

	Subject string `json:"subject,omitempty"`
	Verb    string `json:"verb,omitempty"`
	Object  string `json:"object,omitempty"`
	Tense   Tense  `json:"tense,omitempty"`

	Kingdom string `json:"kingdom,omitempty"`
	Phylum  string `json:"phylum,omitempty"`
	Class   string `json:"class,omitempty"`

	Ext map[string]json.RawMessage `json:"ext,omitempty"`
}

// Scroll is the sole payload type passed across every 9S namespace
// operation.
type Scroll struct {
	Key      string          `json:"key"`
	Type     string          `json:"type"`
	Metadata Metadata        `json:"metadata"`
	Data     json.RawMessage `json:"data"`
}

// GenericType is the default type tag for an untyped scroll.
const GenericType = "scroll/generic@v1"

// New builds a scroll with the generic type tag and zero metadata. data is
// marshaled to canonical JSON immediately so Data is never nil.
func New(key string, data interface{}) (Scroll, error) {
	return Typed(key, data, GenericType)
}

// Typed builds a scroll with an explicit schema type tag.
func Typed(key string, data interface{}, typ string) (Scroll, error) {
	raw, err := marshalCanonical(data)
	if err != nil {
		return Scroll{}, err
	}
	return Scroll{Key: key, Type: typ, Data: raw}, nil
}

// marshalCanonical re-marshals through a generic interface so that map keys
// always sort alphabetically (encoding/json already sorts map[string]any
// keys), producing a stable byte sequence for hashing regardless of the
// original struct's field order.
func marshalCanonical(data interface{}) (json.RawMessage, error) {
	switch v := data.(type) {
	case json.RawMessage:
		return canonicalizeRaw(v)
	case []byte:
		return canonicalizeRaw(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return canonicalizeRaw(b)
	}
}

func canonicalizeRaw(b []byte) (json.RawMessage, error) {
	var v interface{}
	if len(b) == 0 {
		return json.RawMessage("null"), nil
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

// ComputeHash returns the SHA-256 hex digest of key ∥ type ∥
// canonical-JSON(data). It is deterministic for a given scroll and does not
// depend on metadata.
func (s Scroll) ComputeHash() string {
	h := sha256.New()
	h.Write([]byte(s.Key))
	h.Write([]byte(s.Type))
	h.Write(s.Data)
	return hex.EncodeToString(h.Sum(nil))
}

// Finalize sets updated_at (and created_at, if absent), recomputes the hash,
// and returns the mutated scroll. prevCreatedAt is nil on a scroll's first
// write.
func (s Scroll) Finalize(now time.Time, prevCreatedAt *time.Time) Scroll {
	if prevCreatedAt != nil {
		s.Metadata.CreatedAt = prevCreatedAt
	} else if s.Metadata.CreatedAt == nil {
		t := now
		s.Metadata.CreatedAt = &t
	}
	t := now
	s.Metadata.UpdatedAt = &t
	s.Metadata.Hash = s.ComputeHash()
	return s
}

// WithVersion returns a copy of s with Metadata.Version set.
func (s Scroll) WithVersion(v uint64) Scroll {
	s.Metadata.Version = v
	return s
}

// IncrementVersion returns a copy of s with Metadata.Version incremented by one.
func (s Scroll) IncrementVersion() Scroll {
	s.Metadata.Version++
	return s
}

// DataAs unmarshals Data into out.
func (s Scroll) DataAs(out interface{}) error {
	return json.Unmarshal(s.Data, out)
}
