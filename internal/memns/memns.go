// Package memns implements the in-memory 9S namespace backend: prima
// materia, all data in RAM, no persistence. Used for tests, transient
// state, and as the reactive wallet core's hot cache plumbing.
package memns

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/obiverse/beewallet-core/internal/namespace"
	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/ninepath"
	"github.com/obiverse/beewallet-core/internal/scroll"
)

// watcherChanCap is the per-watcher bounded-channel capacity. Dispatch never
// blocks: a full channel drops the event and increments a counter instead.
const watcherChanCap = 16

// maxWatchers caps the live watcher table; the 1025th watch after a prune
// fails with ErrUnavailable.
const maxWatchers = 1024

type watcher struct {
	pattern string
	ch      chan scroll.Scroll
	alive   atomic.Bool
	dropped atomic.Uint64
}

// Namespace is the in-memory backend. Zero value is not usable; construct
// with New.
type Namespace struct {
	mu       sync.RWMutex
	store    map[string]scroll.Scroll
	watchers []*watcher
	closed   bool
	log      *logrus.Entry
}

// New constructs an empty in-memory namespace.
func New() *Namespace {
	return &Namespace{
		store: make(map[string]scroll.Scroll),
		log:   logrus.WithField("component", "memns"),
	}
}

// SetLogger overrides the default logger.
func (n *Namespace) SetLogger(l *logrus.Entry) { n.log = l }

func (n *Namespace) checkClosed() error {
	if n.closed {
		return nineerr.ErrClosed
	}
	return nil
}

var _ namespace.Namespace = (*Namespace)(nil)

// Read implements namespace.Namespace.
func (n *Namespace) Read(path string) (scroll.Scroll, bool, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.checkClosed(); err != nil {
		return scroll.Scroll{}, false, err
	}
	if err := ninepath.Validate(path); err != nil {
		return scroll.Scroll{}, false, err
	}
	s, ok := n.store[path]
	return s, ok, nil
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
	n.mu.Lock()
	if err := n.checkClosed(); err != nil {
		n.mu.Unlock()
		return scroll.Scroll{}, err
	}
	if err := ninepath.Validate(s.Key); err != nil {
		n.mu.Unlock()
		return scroll.Scroll{}, err
	}

	prev, existed := n.store[s.Key]
	var prevVersion uint64
	var prevCreated *time.Time
	if existed {
		prevVersion = prev.Metadata.Version
		prevCreated = prev.Metadata.CreatedAt
	}

	out := s.WithVersion(prevVersion + 1).Finalize(time.Now().UTC(), prevCreated)
	n.store[s.Key] = out
	n.mu.Unlock()

	n.notify(out)
	return out, nil
}

// List implements namespace.Namespace.
func (n *Namespace) List(prefix string) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.checkClosed(); err != nil {
		return nil, err
	}
	if err := ninepath.Validate(prefix); err != nil {
		return nil, err
	}
	var out []string
	for k := range n.store {
		if ninepath.IsUnderPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Watch implements namespace.Namespace. The returned Receiver is tied to an
// internal watcher entry; close it to unregister immediately, otherwise it
// is pruned opportunistically on the next dispatch.
func (n *Namespace) Watch(pattern string) (*namespace.Receiver, error) {
	if err := ninepath.Validate(pattern); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.checkClosed(); err != nil {
		return nil, err
	}

	n.pruneDeadLocked()
	if len(n.watchers) >= maxWatchers {
		return nil, fmt.Errorf("%w: too many watchers", nineerr.ErrUnavailable)
	}

	w := &watcher{pattern: pattern, ch: make(chan scroll.Scroll, watcherChanCap)}
	w.alive.Store(true)
	n.watchers = append(n.watchers, w)

	var once sync.Once
	closer := func() {
		once.Do(func() {
			w.alive.Store(false)
			n.mu.Lock()
			n.pruneDeadLocked()
			n.mu.Unlock()
		})
	}
	return namespace.NewReceiver(w.ch, closer), nil
}

// Close implements namespace.Namespace. Idempotent.
func (n *Namespace) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.watchers = nil
	return nil
}

func (n *Namespace) notify(s scroll.Scroll) {
	n.mu.RLock()
	for _, w := range n.watchers {
		if !w.alive.Load() {
			continue
		}
		if !ninepath.Matches(s.Key, w.pattern) {
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
	n.mu.RUnlock()

	// Probabilistic prune to avoid taking the write lock on every dispatch.
	if time.Now().UnixNano()%10 == 0 {
		n.mu.Lock()
		n.pruneDeadLocked()
		n.mu.Unlock()
	}
}

// pruneDeadLocked removes watchers whose receivers have been closed. Caller
// must hold n.mu for writing.
func (n *Namespace) pruneDeadLocked() {
	live := n.watchers[:0]
	for _, w := range n.watchers {
		if w.alive.Load() {
			live = append(live, w)
		}
	}
	n.watchers = live
}
