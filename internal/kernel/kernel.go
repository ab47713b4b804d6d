// Package kernel implements the 9S mount table: longest-prefix-match
// composition of namespaces on segment boundaries, translating paths across
// the mount boundary in both directions. A Kernel is itself a
// namespace.Namespace, so mount tables compose.
package kernel

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/obiverse/beewallet-core/internal/namespace"
	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/ninepath"
	"github.com/obiverse/beewallet-core/internal/scroll"
)

// Kernel is a mount table from mount path to namespace. Mounts are
// reference-counted only in the sense that callers retain their own handles
// to the namespace they mounted; the kernel itself just holds the same
// interface value.
type Kernel struct {
	mu     sync.RWMutex
	mounts map[string]namespace.Namespace
	closed bool
}

// New returns an empty mount table.
func New() *Kernel {
	return &Kernel{mounts: make(map[string]namespace.Namespace)}
}

var _ namespace.Namespace = (*Kernel)(nil)

// normalizeMount strips a trailing "/" (except for the root mount itself).
func normalizeMount(p string) string {
	if p != "/" && strings.HasSuffix(p, "/") {
		return strings.TrimSuffix(p, "/")
	}
	return p
}

// Mount registers ns at mountPath. Re-mounting the same path replaces the
// previous namespace (the caller is responsible for closing it first if
// that matters).
func (k *Kernel) Mount(mountPath string, ns namespace.Namespace) error {
	if err := ninepath.Validate(mountPath); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.mounts[normalizeMount(mountPath)] = ns
	return nil
}

// Unmount removes the namespace registered at mountPath, if any. It does
// not close it — the caller owns that lifecycle.
func (k *Kernel) Unmount(mountPath string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.mounts, normalizeMount(mountPath))
}

// Resolve finds the longest mount whose path is a segment-boundary prefix of
// p, and returns the namespace plus p with that mount prefix stripped (the
// path the child namespace will actually see).
func (k *Kernel) Resolve(p string) (namespace.Namespace, string, string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var best string
	var bestLen = -1
	for mount := range k.mounts {
		if ninepath.IsUnderPrefix(p, mount) && len(mount) > bestLen {
			best = mount
			bestLen = len(mount)
		}
	}
	if bestLen == -1 {
		return nil, "", "", fmt.Errorf("%w: no mount covers %q", nineerr.ErrNotFound, p)
	}

	stripped := strings.TrimPrefix(p, best)
	if stripped == "" {
		stripped = "/"
	}
	return k.mounts[best], stripped, best, nil
}

func (k *Kernel) reprefix(mount string, s scroll.Scroll) scroll.Scroll {
	if mount == "/" {
		if strings.HasPrefix(s.Key, "/") {
			return s
		}
		s.Key = "/" + s.Key
		return s
	}
	if s.Key == "/" {
		s.Key = mount
		return s
	}
	s.Key = mount + s.Key
	return s
}

func (k *Kernel) checkClosed() error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nineerr.ErrClosed
	}
	return nil
}

// Read implements namespace.Namespace.
func (k *Kernel) Read(path string) (scroll.Scroll, bool, error) {
	if err := k.checkClosed(); err != nil {
		return scroll.Scroll{}, false, err
	}
	ns, stripped, mount, err := k.Resolve(path)
	if err != nil {
		return scroll.Scroll{}, false, err
	}
	s, ok, err := ns.Read(stripped)
	if err != nil || !ok {
		return scroll.Scroll{}, ok, err
	}
	return k.reprefix(mount, s), true, nil
}

// Write implements namespace.Namespace.
func (k *Kernel) Write(path string, data json.RawMessage) (scroll.Scroll, error) {
	if err := k.checkClosed(); err != nil {
		return scroll.Scroll{}, err
	}
	ns, stripped, mount, err := k.Resolve(path)
	if err != nil {
		return scroll.Scroll{}, err
	}
	s, err := ns.Write(stripped, data)
	if err != nil {
		return scroll.Scroll{}, err
	}
	return k.reprefix(mount, s), nil
}

// WriteScroll implements namespace.Namespace.
func (k *Kernel) WriteScroll(s scroll.Scroll) (scroll.Scroll, error) {
	if err := k.checkClosed(); err != nil {
		return scroll.Scroll{}, err
	}
	ns, stripped, mount, err := k.Resolve(s.Key)
	if err != nil {
		return scroll.Scroll{}, err
	}
	inner := s
	inner.Key = stripped
	out, err := ns.WriteScroll(inner)
	if err != nil {
		return scroll.Scroll{}, err
	}
	return k.reprefix(mount, out), nil
}

// List implements namespace.Namespace.
func (k *Kernel) List(prefix string) ([]string, error) {
	if err := k.checkClosed(); err != nil {
		return nil, err
	}
	ns, stripped, mount, err := k.Resolve(prefix)
	if err != nil {
		return nil, err
	}
	keys, err := ns.List(stripped)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if mount == "/" {
			out = append(out, key)
			continue
		}
		if key == "/" {
			out = append(out, mount)
			continue
		}
		out = append(out, mount+key)
	}
	sort.Strings(out)
	return out, nil
}

// Watch implements namespace.Namespace. It subscribes in the child
// namespace and runs a forwarder goroutine that re-prefixes each scroll
// before handing it to the caller; closing the returned receiver unwinds
// both the forwarder and the child subscription.
func (k *Kernel) Watch(pattern string) (*namespace.Receiver, error) {
	if err := k.checkClosed(); err != nil {
		return nil, err
	}
	ns, stripped, mount, err := k.Resolve(pattern)
	if err != nil {
		return nil, err
	}
	childRecv, err := ns.Watch(stripped)
	if err != nil {
		return nil, err
	}

	out := make(chan scroll.Scroll, 16)
	done := make(chan struct{})
	var closeOnce sync.Once
	closer := func() {
		closeOnce.Do(func() {
			close(done)
			childRecv.Close()
		})
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			default:
			}
			s, ok := childRecv.Recv()
			if !ok {
				return
			}
			select {
			case out <- k.reprefix(mount, s):
			case <-done:
				return
			}
		}
	}()

	return namespace.NewReceiver(out, closer), nil
}

// Close closes the kernel (not its mounted namespaces, which callers own)
// and makes all further operations fail with ErrClosed. Idempotent.
func (k *Kernel) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	return nil
}
