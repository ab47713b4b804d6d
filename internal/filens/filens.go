// Package filens implements the persistent 9S namespace backend: one
// pretty-printed JSON file per scroll under a _scrolls/ tree, with a version
// cache to avoid re-reading the file on every write.
package filens

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/obiverse/beewallet-core/internal/namespace"
	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/ninepath"
	"github.com/obiverse/beewallet-core/internal/scroll"
)

const (
	watcherChanCap = 16
	maxWatchers    = 1024
	scrollsDirName = "_scrolls"
)

type watcher struct {
	pattern string
	ch      chan scroll.Scroll
	alive   atomic.Bool
	dropped atomic.Uint64
}

// cacheEntry holds everything the next write needs to know about a path
// without touching disk: its last written version and its original
// creation time.
type cacheEntry struct {
	version   uint64
	createdAt *time.Time
}

// Namespace is the filesystem-backed 9S namespace. Its only defense against
// path traversal is ninepath.Validate — "." and ".." segments are rejected
// before any path is joined, so no further canonicalization is needed.
type Namespace struct {
	base string

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry // path -> last known version + createdAt

	watchMu  sync.Mutex
	watchers []*watcher

	closed atomic.Bool
	log    *logrus.Entry
}

var _ namespace.Namespace = (*Namespace)(nil)

// Open creates (if needed) base/_scrolls and returns a ready namespace.
func Open(base string) (*Namespace, error) {
	dir := filepath.Join(base, scrollsDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: mkdir scrolls dir: %v", nineerr.ErrInternal, err)
	}
	return &Namespace{
		base:  base,
		cache: make(map[string]cacheEntry),
		log:   logrus.WithField("component", "filens"),
	}, nil
}

// SetLogger overrides the default logger.
func (n *Namespace) SetLogger(l *logrus.Entry) { n.log = l }

// scrollFile maps a validated path to its on-disk location: "/" -> root.json,
// "/a/b" -> a/b.json.
func (n *Namespace) scrollFile(path string) string {
	if path == "/" {
		return filepath.Join(n.base, scrollsDirName, "root.json")
	}
	rel := strings.TrimPrefix(path, "/")
	return filepath.Join(n.base, scrollsDirName, rel+".json")
}

func (n *Namespace) checkClosed() error {
	if n.closed.Load() {
		return nineerr.ErrClosed
	}
	return nil
}

// Read implements namespace.Namespace.
func (n *Namespace) Read(path string) (scroll.Scroll, bool, error) {
	if err := n.checkClosed(); err != nil {
		return scroll.Scroll{}, false, err
	}
	if err := ninepath.Validate(path); err != nil {
		return scroll.Scroll{}, false, err
	}
	return n.readFile(path)
}

func (n *Namespace) readFile(path string) (scroll.Scroll, bool, error) {
	b, err := os.ReadFile(n.scrollFile(path))
	if os.IsNotExist(err) {
		return scroll.Scroll{}, false, nil
	}
	if err != nil {
		return scroll.Scroll{}, false, fmt.Errorf("%w: read scroll file: %v", nineerr.ErrInternal, err)
	}
	var s scroll.Scroll
	if err := json.Unmarshal(b, &s); err != nil {
		return scroll.Scroll{}, false, fmt.Errorf("%w: decode scroll file: %v", nineerr.ErrInternal, err)
	}
	return s, true, nil
}

// Write implements namespace.Namespace.
func (n *Namespace) Write(path string, data json.RawMessage) (scroll.Scroll, error) {
	s, err := scroll.New(path, data)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrInvalidData, err)
	}
	return n.WriteScroll(s)
}

// WriteScroll implements namespace.Namespace.
func (n *Namespace) WriteScroll(s scroll.Scroll) (scroll.Scroll, error) {
	if err := n.checkClosed(); err != nil {
		return scroll.Scroll{}, err
	}
	if err := ninepath.Validate(s.Key); err != nil {
		return scroll.Scroll{}, err
	}

	n.cacheMu.Lock()
	defer n.cacheMu.Unlock()

	prevVersion, prevCreated, err := n.currentVersion(s.Key)
	if err != nil {
		return scroll.Scroll{}, err
	}

	out := s.WithVersion(prevVersion + 1).Finalize(time.Now().UTC(), prevCreated)

	if err := n.writeFile(out); err != nil {
		return scroll.Scroll{}, err
	}
	n.cache[s.Key] = cacheEntry{version: out.Metadata.Version, createdAt: out.Metadata.CreatedAt}

	n.notify(out)
	return out, nil
}

// currentVersion consults the cache first, genuinely skipping the file read
// on a hit since the cache now carries both the version and the original
// createdAt; only a cache miss falls back to reading the file once,
// matching the teacher's approach of minimizing syscalls on the hot path
// (pkg/utils' env lookups are the same idea applied to env vars).
func (n *Namespace) currentVersion(path string) (uint64, *time.Time, error) {
	if e, ok := n.cache[path]; ok {
		return e.version, e.createdAt, nil
	}
	existing, found, err := n.readFile(path)
	if err != nil {
		return 0, nil, err
	}
	if !found {
		return 0, nil, nil
	}
	return existing.Metadata.Version, existing.Metadata.CreatedAt, nil
}

func (n *Namespace) writeFile(s scroll.Scroll) error {
	file := n.scrollFile(s.Key)
	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return fmt.Errorf("%w: mkdir: %v", nineerr.ErrInternal, err)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode scroll: %v", nineerr.ErrInternal, err)
	}
	if err := os.WriteFile(file, b, 0o600); err != nil {
		return fmt.Errorf("%w: write scroll file: %v", nineerr.ErrInternal, err)
	}
	return nil
}

// List implements namespace.Namespace.
func (n *Namespace) List(prefix string) ([]string, error) {
	if err := n.checkClosed(); err != nil {
		return nil, err
	}
	if err := ninepath.Validate(prefix); err != nil {
		return nil, err
	}

	root := filepath.Join(n.base, scrollsDirName)
	var out []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || !strings.HasSuffix(p, ".json") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := "/" + strings.TrimSuffix(filepath.ToSlash(rel), ".json")
		if key == "/root" {
			key = "/"
		}
		if ninepath.IsUnderPrefix(key, prefix) {
			out = append(out, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk scrolls dir: %v", nineerr.ErrInternal, err)
	}
	return out, nil
}

// Watch implements namespace.Namespace. Dispatch runs synchronously on the
// goroutine that called Write — whether this must instead run on a
// background goroutine is an open question upstream (see SPEC_FULL.md); this
// matches the original's documented behavior.
func (n *Namespace) Watch(pattern string) (*namespace.Receiver, error) {
	if err := ninepath.Validate(pattern); err != nil {
		return nil, err
	}
	if err := n.checkClosed(); err != nil {
		return nil, err
	}

	n.watchMu.Lock()
	defer n.watchMu.Unlock()

	n.pruneDeadLocked()
	if len(n.watchers) >= maxWatchers {
		return nil, fmt.Errorf("%w: too many watchers", nineerr.ErrUnavailable)
	}

	w := &watcher{pattern: pattern, ch: make(chan scroll.Scroll, watcherChanCap)}
	w.alive.Store(true)
	n.watchers = append(n.watchers, w)

	var once sync.Once
	closer := func() { once.Do(func() { w.alive.Store(false) }) }
	return namespace.NewReceiver(w.ch, closer), nil
}

// Close implements namespace.Namespace. Idempotent.
func (n *Namespace) Close() error {
	n.closed.Store(true)
	n.watchMu.Lock()
	n.watchers = nil
	n.watchMu.Unlock()
	return nil
}

// Delete removes a single scroll's file and its cached version, if present.
// A no-op if the scroll does not exist.
func (n *Namespace) Delete(path string) error {
	if err := ninepath.Validate(path); err != nil {
		return err
	}
	n.cacheMu.Lock()
	defer n.cacheMu.Unlock()

	if err := os.Remove(n.scrollFile(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove scroll file: %v", nineerr.ErrInternal, err)
	}
	delete(n.cache, path)
	return nil
}

// DeleteAll removes and recreates the _scrolls tree and clears the version
// cache. Used by the vault's reset operation.
func (n *Namespace) DeleteAll() error {
	dir := filepath.Join(n.base, scrollsDirName)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: remove scrolls dir: %v", nineerr.ErrInternal, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: recreate scrolls dir: %v", nineerr.ErrInternal, err)
	}
	n.cacheMu.Lock()
	n.cache = make(map[string]cacheEntry)
	n.cacheMu.Unlock()
	return nil
}

func (n *Namespace) notify(s scroll.Scroll) {
	n.watchMu.Lock()
	for _, w := range n.watchers {
		if !w.alive.Load() || !ninepath.Matches(s.Key, w.pattern) {
			continue
		}
		select {
		case w.ch <- s:
		default:
			w.dropped.Add(1)
			n.log.WithFields(logrus.Fields{"pattern": w.pattern, "key": s.Key}).
				Debug("watcher channel full, dropping event")
		}
	}
	n.pruneDeadLocked()
	n.watchMu.Unlock()
}

// pruneDeadLocked removes watchers whose receivers have been closed. Caller
// must hold n.watchMu.
func (n *Namespace) pruneDeadLocked() {
	live := n.watchers[:0]
	for _, w := range n.watchers {
		if w.alive.Load() {
			live = append(live, w)
		}
	}
	n.watchers = live
}
