// Package anchor implements immutable, hash-verified checkpoints of a
// scroll's state.
package anchor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obiverse/beewallet-core/internal/scroll"
)

// Anchor is an immutable snapshot of a scroll at a point in time.
type Anchor struct {
	ID          string        `json:"id"`
	Scroll      scroll.Scroll `json:"scroll"`
	Hash        string        `json:"hash"`
	Timestamp   int64         `json:"timestamp"` // unix millis
	Label       string        `json:"label,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Create produces an anchor from s. The id embeds an 8-char hash prefix,
// the creation timestamp, and 4 hex chars of randomness to guarantee
// uniqueness within the same millisecond.
func Create(s scroll.Scroll, label string) (Anchor, error) {
	h := s.ComputeHash()
	ts := time.Now().UTC().UnixMilli()

	rand := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	id := fmt.Sprintf("%s-%d-%s", h[:8], ts, rand)

	return Anchor{
		ID:        id,
		Scroll:    s,
		Hash:      h,
		Timestamp: ts,
		Label:     label,
	}, nil
}

// CreateWithDescription is Create plus a free-text description.
func CreateWithDescription(s scroll.Scroll, label, description string) (Anchor, error) {
	a, err := Create(s, label)
	if err != nil {
		return Anchor{}, err
	}
	a.Description = description
	return a, nil
}

// Verify recomputes the embedded scroll's hash and compares it to a.Hash.
func Verify(a Anchor) bool {
	return a.Scroll.ComputeHash() == a.Hash
}

// Equivalent reports whether a and b represent the same content, regardless
// of id or timestamp.
func Equivalent(a, b Anchor) bool {
	return a.Hash == b.Hash
}

// Extract returns just the scroll embedded in the anchor.
func Extract(a Anchor) scroll.Scroll {
	return a.Scroll
}
