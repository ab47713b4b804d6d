// Package sysns implements the /system/* mount: host lifecycle and static
// build info. It is a thin namespace.Namespace facade over the same wallet
// SDK boundary the reactor owns, so /system/connect and /system/disconnect
// toggle the one real connection rather than maintaining a second one.
package sysns

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/obiverse/beewallet-core/internal/namespace"
	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/ninepath"
	"github.com/obiverse/beewallet-core/internal/scroll"
)

// Version is the build identifier reported at /system/info. Overridden at
// link time is out of scope here; a constant matches the teacher's own
// cmd/cli version handling at this scale.
const Version = "0.1.0"

// Controller is the lifecycle subset of the wallet SDK boundary that
// /system/* drives. reactor.Reactor's underlying WalletSDK satisfies it.
type Controller interface {
	Connect() error
	Disconnect() error
	Connected() bool
	Network() string
}

// Namespace serves /status, /info (reads) and /connect, /disconnect
// (writes) over a Controller. It holds no state of its own beyond its
// start time and a closed flag; all connection state lives in the Controller.
type Namespace struct {
	ctrl    Controller
	startAt time.Time
	closed  bool
}

var _ namespace.Namespace = (*Namespace)(nil)

// New returns a system namespace driving ctrl.
func New(ctrl Controller) *Namespace {
	return &Namespace{ctrl: ctrl, startAt: time.Now().UTC()}
}

func (n *Namespace) checkClosed() error {
	if n.closed {
		return nineerr.ErrClosed
	}
	return nil
}

// Read serves /status and /info. Any other path is "not found", not an
// error: the path ontology here is fixed and small.
func (n *Namespace) Read(path string) (scroll.Scroll, bool, error) {
	if err := n.checkClosed(); err != nil {
		return scroll.Scroll{}, false, err
	}
	if err := ninepath.Validate(path); err != nil {
		return scroll.Scroll{}, false, err
	}
	switch path {
	case "/status":
		status := struct {
			Connected bool   `json:"connected"`
			Network   string `json:"network"`
			Backend   string `json:"backend"`
			Version   string `json:"version"`
		}{
			Connected: n.ctrl.Connected(),
			Network:   n.ctrl.Network(),
			Backend:   "sysns",
			Version:   Version,
		}
		sc, err := scroll.Typed(path, status, "system/status@v1")
		return finalize(sc, err)
	case "/info":
		info := struct {
			Version   string `json:"version"`
			StartedAt string `json:"startedAt"`
		}{Version: Version, StartedAt: n.startAt.Format(time.RFC3339)}
		sc, err := scroll.Typed(path, info, "system/info@v1")
		return finalize(sc, err)
	default:
		return scroll.Scroll{}, false, nil
	}
}

func finalize(sc scroll.Scroll, err error) (scroll.Scroll, bool, error) {
	if err != nil {
		return scroll.Scroll{}, false, fmt.Errorf("%w: %v", nineerr.ErrInternal, err)
	}
	return sc.Finalize(time.Now().UTC(), nil).WithVersion(1), true, nil
}

// Write serves /connect and /disconnect; every other path is Unavailable.
func (n *Namespace) Write(path string, data json.RawMessage) (scroll.Scroll, error) {
	if err := n.checkClosed(); err != nil {
		return scroll.Scroll{}, err
	}
	if err := ninepath.Validate(path); err != nil {
		return scroll.Scroll{}, err
	}
	switch path {
	case "/connect":
		if err := n.ctrl.Connect(); err != nil {
			return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrConnection, err)
		}
		return n.statusScroll(path)
	case "/disconnect":
		if err := n.ctrl.Disconnect(); err != nil {
			return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrConnection, err)
		}
		return n.statusScroll(path)
	default:
		return scroll.Scroll{}, fmt.Errorf("%w: no writable operation at %q", nineerr.ErrUnavailable, path)
	}
}

func (n *Namespace) statusScroll(path string) (scroll.Scroll, error) {
	sc, _, err := n.Read("/status")
	if err != nil {
		return scroll.Scroll{}, err
	}
	sc.Key = path
	return sc, nil
}

// WriteScroll delegates to Write: /system/* is operation-shaped.
func (n *Namespace) WriteScroll(s scroll.Scroll) (scroll.Scroll, error) {
	return n.Write(s.Key, s.Data)
}

// List returns the fixed path ontology under prefix.
func (n *Namespace) List(prefix string) ([]string, error) {
	if err := n.checkClosed(); err != nil {
		return nil, err
	}
	if err := ninepath.Validate(prefix); err != nil {
		return nil, err
	}
	var out []string
	for _, p := range []string{"/status", "/info", "/connect", "/disconnect"} {
		if ninepath.IsUnderPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Watch is unsupported: /system/* has no event stream of its own, only
// point-in-time lifecycle queries.
func (n *Namespace) Watch(pattern string) (*namespace.Receiver, error) {
	if err := n.checkClosed(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: /system has no watchable state", nineerr.ErrUnavailable)
}

// Close idempotently shuts the namespace down. It does not disconnect the
// controller: that lifecycle is owned by whoever constructed it.
func (n *Namespace) Close() error {
	n.closed = true
	return nil
}
