package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	anchorpkg "github.com/obiverse/beewallet-core/internal/anchor"
	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/patch"
	"github.com/obiverse/beewallet-core/internal/scroll"
)

// History returns every persisted patch for key, sorted by seq.
func (s *Store) History(key string) ([]patch.Patch, error) {
	dir := s.patchesDir(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read patches dir: %v", nineerr.ErrInternal, err)
	}
	out := make([]patch.Patch, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: read patch file: %v", nineerr.ErrInternal, err)
		}
		var p patch.Patch
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("%w: decode patch file: %v", nineerr.ErrInternal, err)
		}
		out = append(out, p)
	}
	sortBySeq(out)
	return out, nil
}

// Anchors returns every anchor for key, sorted by timestamp.
func (s *Store) Anchors(key string) ([]anchorpkg.Anchor, error) {
	dir := s.anchorsDir(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read anchors dir: %v", nineerr.ErrInternal, err)
	}
	out := make([]anchorpkg.Anchor, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: read anchor file: %v", nineerr.ErrInternal, err)
		}
		var a anchorpkg.Anchor
		if err := json.Unmarshal(b, &a); err != nil {
			return nil, fmt.Errorf("%w: decode anchor file: %v", nineerr.ErrInternal, err)
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// Anchor reads the current (decrypted) state at key, creates an anchor, and
// persists it. Fails with ErrNotFound if key has no current state.
func (s *Store) Anchor(key string, label string) (anchorpkg.Anchor, error) {
	cur, ok, err := s.Read(key)
	if err != nil {
		return anchorpkg.Anchor{}, err
	}
	if !ok {
		return anchorpkg.Anchor{}, fmt.Errorf("%w: no current state at %q", nineerr.ErrNotFound, key)
	}
	a, err := anchorpkg.Create(cur, label)
	if err != nil {
		return anchorpkg.Anchor{}, err
	}
	if err := s.persistAnchor(a); err != nil {
		return anchorpkg.Anchor{}, err
	}
	return a, nil
}

func (s *Store) persistAnchor(a anchorpkg.Anchor) error {
	dir := s.anchorsDir(a.Scroll.Key)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: mkdir anchors dir: %v", nineerr.ErrInternal, err)
	}
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode anchor: %v", nineerr.ErrInternal, err)
	}
	file := filepath.Join(dir, a.ID+".json")
	if err := os.WriteFile(file, b, 0o600); err != nil {
		return fmt.Errorf("%w: write anchor file: %v", nineerr.ErrInternal, err)
	}
	return nil
}

// StateAt reconstructs the scroll state at key as of seq by applying the
// first seq patches (in order) to the genesis scroll (empty object data).
// Fails if seq==0, seq exceeds the number of persisted patches, or key has
// no history at all.
func (s *Store) StateAt(key string, seq uint64) (scroll.Scroll, error) {
	if seq == 0 {
		return scroll.Scroll{}, fmt.Errorf("%w: seq must be >= 1", nineerr.ErrInvalidData)
	}
	history, err := s.History(key)
	if err != nil {
		return scroll.Scroll{}, err
	}
	if len(history) == 0 {
		return scroll.Scroll{}, fmt.Errorf("%w: no history for %q", nineerr.ErrNotFound, key)
	}
	if int(seq) > len(history) {
		return scroll.Scroll{}, fmt.Errorf("%w: seq %d exceeds history length %d", nineerr.ErrInvalidData, seq, len(history))
	}

	cur, err := scroll.New(key, map[string]interface{}{})
	if err != nil {
		return scroll.Scroll{}, err
	}
	data := cur.Data
	var version uint64
	for i := 0; i < int(seq); i++ {
		data, err = patch.Apply(data, history[i].Ops)
		if err != nil {
			return scroll.Scroll{}, err
		}
		version = history[i].Seq
	}
	out := cur
	out.Data = data
	out.Metadata.Version = version
	out.Metadata.Hash = out.ComputeHash()
	return out, nil
}

// Restore looks up anchorID under key, verifies it, and writes its scroll
// back through the normal write pipeline (creating a new patch rather than
// rewinding history).
func (s *Store) Restore(key, anchorID string) (scroll.Scroll, error) {
	anchors, err := s.Anchors(key)
	if err != nil {
		return scroll.Scroll{}, err
	}
	var found *anchorpkg.Anchor
	for i := range anchors {
		if anchors[i].ID == anchorID {
			found = &anchors[i]
			break
		}
	}
	if found == nil {
		return scroll.Scroll{}, fmt.Errorf("%w: anchor %q", nineerr.ErrNotFound, anchorID)
	}
	if !anchorpkg.Verify(*found) {
		return scroll.Scroll{}, fmt.Errorf("%w: anchor %q failed verification", nineerr.ErrInternal, anchorID)
	}
	return s.WriteScroll(anchorpkg.Extract(*found))
}
