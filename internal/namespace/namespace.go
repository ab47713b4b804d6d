// Package namespace defines the five frozen 9S operations. Every backend —
// memory, file, the mount kernel, the encrypted store, and the reactive
// wallet core — implements this single interface; there is no subtype
// hierarchy beyond it.
package namespace

import (
	"encoding/json"
	"runtime"

	"github.com/obiverse/beewallet-core/internal/scroll"
)

// Receiver is the lazy, possibly-infinite sequence of scrolls returned by
// Watch. It is backed by a bounded channel; closing it (or letting it be
// garbage collected) signals the producing namespace to prune the watcher.
type Receiver struct {
	ch     <-chan scroll.Scroll
	closer func()
}

// NewReceiver wraps a channel and its cleanup function for callers that
// construct their own watcher plumbing (memns, filens, kernel, reactor). A
// finalizer runs the closer if the caller drops the Receiver without ever
// calling Close, so a forgotten unsubscribe still gets pruned eventually
// (Go has no Drop; this is the idiomatic backstop for it).
func NewReceiver(ch <-chan scroll.Scroll, closer func()) *Receiver {
	r := &Receiver{ch: ch, closer: closer}
	if closer != nil {
		runtime.SetFinalizer(r, (*Receiver).Close)
	}
	return r
}

// Recv blocks until a scroll arrives or the channel closes, returning
// ok=false in the latter case.
func (r *Receiver) Recv() (scroll.Scroll, bool) {
	s, ok := <-r.ch
	return s, ok
}

// TryRecv returns immediately: a scroll and true if one was buffered, or
// the zero value and false otherwise (including "channel closed").
func (r *Receiver) TryRecv() (scroll.Scroll, bool) {
	select {
	case s, ok := <-r.ch:
		return s, ok
	default:
		return scroll.Scroll{}, false
	}
}

// Close unregisters the watcher. Idempotent. Namespaces should treat a
// missing closer as a no-op (e.g. receivers built for testing).
func (r *Receiver) Close() {
	if r.closer != nil {
		r.closer()
	}
}

// Namespace is the sole polymorphic axis in the 9S design: read, write,
// write_scroll, list, watch, close. Backends are concrete implementations
// of this interface, never a deeper subtype hierarchy.
type Namespace interface {
	// Read returns the scroll at path, or (zero, false) if absent. A
	// missing scroll is not an error.
	Read(path string) (scroll.Scroll, bool, error)

	// Write stores data at path, returning the finalized scroll with its
	// version incremented and hash recomputed.
	Write(path string, data json.RawMessage) (scroll.Scroll, error)

	// WriteScroll stores a caller-constructed scroll, preserving its type
	// and any metadata already set, but still re-versioning and re-hashing
	// it. Backends that have no reason to diverge from Write's behavior may
	// implement WriteScroll by delegating to Write.
	WriteScroll(s scroll.Scroll) (scroll.Scroll, error)

	// List returns every key under prefix (segment-boundary semantics),
	// empty if none match.
	List(prefix string) ([]string, error)

	// Watch registers pattern and returns a Receiver of future matching
	// writes. The only non-terminating call: the sequence ends only when
	// the namespace closes or the subscriber closes its receiver.
	Watch(pattern string) (*Receiver, error)

	// Close idempotently shuts the namespace down; all further operations
	// fail with ErrClosed.
	Close() error
}
