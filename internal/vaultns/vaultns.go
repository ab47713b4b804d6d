// Package vaultns implements the /vault/* mount: lifecycle operations over
// internal/vault's credential-gated Store and its in-memory unlock Session.
// Every operation is a write with the result cached for subsequent Read,
// except that a Read of /status computes a fresh snapshot just as a Write
// of /status does.
package vaultns

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/obiverse/beewallet-core/internal/namespace"
	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/ninepath"
	"github.com/obiverse/beewallet-core/internal/scroll"
	"github.com/obiverse/beewallet-core/internal/vault"
)

// Namespace serves /status, /init, /unlock, /lock, /reset, /auto-connect
// over a vault.Store and the Session that holds its unlocked key between
// calls.
type Namespace struct {
	store   *vault.Store
	session *vault.Session

	cache  map[string]scroll.Scroll
	closed bool
}

var _ namespace.Namespace = (*Namespace)(nil)

// New returns a vault namespace over store, with a fresh session of
// sessionTimeoutSecs inactivity timeout (0 selects the vault package's
// default).
func New(store *vault.Store, sessionTimeoutSecs uint64) *Namespace {
	return &Namespace{
		store:   store,
		session: vault.NewSession(sessionTimeoutSecs),
		cache:   make(map[string]scroll.Scroll),
	}
}

func (n *Namespace) checkClosed() error {
	if n.closed {
		return nineerr.ErrClosed
	}
	return nil
}

// Read of /status computes a fresh status snapshot (and caches it); any
// other path returns the last response written to it, if any.
func (n *Namespace) Read(path string) (scroll.Scroll, bool, error) {
	if err := n.checkClosed(); err != nil {
		return scroll.Scroll{}, false, err
	}
	if err := ninepath.Validate(path); err != nil {
		return scroll.Scroll{}, false, err
	}
	if path == "/status" {
		return n.writeStatus()
	}
	sc, ok := n.cache[path]
	return sc, ok, nil
}

// Write dispatches /status, /init, /unlock, /lock, /reset, /auto-connect.
func (n *Namespace) Write(path string, data json.RawMessage) (scroll.Scroll, error) {
	if err := n.checkClosed(); err != nil {
		return scroll.Scroll{}, err
	}
	if err := ninepath.Validate(path); err != nil {
		return scroll.Scroll{}, err
	}

	switch path {
	case "/status":
		sc, _, err := n.writeStatus()
		return sc, err
	case "/init":
		return n.writeInit(data)
	case "/unlock":
		return n.writeUnlock(data)
	case "/lock":
		return n.writeLock()
	case "/reset":
		return n.writeReset()
	case "/auto-connect":
		return n.writeAutoConnect(data)
	default:
		return scroll.Scroll{}, fmt.Errorf("%w: no writable operation at %q", nineerr.ErrUnavailable, path)
	}
}

func (n *Namespace) writeStatus() (scroll.Scroll, bool, error) {
	initialized, err := n.store.IsInitialized()
	if err != nil {
		return scroll.Scroll{}, false, err
	}
	status := struct {
		Initialized      bool   `json:"initialized"`
		Unlocked         bool   `json:"unlocked"`
		SessionToken     string `json:"sessionToken,omitempty"`
		LockoutRemaining uint64 `json:"lockoutRemaining"`
		SessionRemaining uint64 `json:"sessionRemaining"`
	}{
		Initialized:      initialized,
		Unlocked:         n.session.IsActive(),
		SessionToken:     n.session.Token(),
		LockoutRemaining: n.store.LockoutRemaining(),
		SessionRemaining: n.session.RemainingSecs(),
	}
	sc, err := n.store2("/status", status, "vault/status@v1")
	if err != nil {
		return scroll.Scroll{}, false, err
	}
	return sc, true, nil
}

func (n *Namespace) writeInit(data json.RawMessage) (scroll.Scroll, error) {
	var req struct {
		Passphrase string `json:"passphrase"`
		SeedPhrase string `json:"seedPhrase"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode /init payload: %v", nineerr.ErrInvalidData, err)
	}
	key, err := n.store.Initialize(req.Passphrase, req.SeedPhrase)
	if err != nil {
		return scroll.Scroll{}, err
	}
	n.session.Start(key)
	resp := struct {
		Initialized bool `json:"initialized"`
	}{Initialized: true}
	return n.store2("/init", resp, "vault/init@v1")
}

func (n *Namespace) writeUnlock(data json.RawMessage) (scroll.Scroll, error) {
	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode /unlock payload: %v", nineerr.ErrInvalidData, err)
	}
	key, err := n.store.Unlock(req.Passphrase)
	if err != nil {
		return scroll.Scroll{}, err
	}
	n.session.Start(key)
	resp := struct {
		Unlocked bool `json:"unlocked"`
	}{Unlocked: true}
	return n.store2("/unlock", resp, "vault/unlock@v1")
}

func (n *Namespace) writeLock() (scroll.Scroll, error) {
	if err := n.session.Close(); err != nil {
		return scroll.Scroll{}, err
	}
	resp := struct {
		Unlocked bool `json:"unlocked"`
	}{Unlocked: false}
	return n.store2("/lock", resp, "vault/lock@v1")
}

func (n *Namespace) writeReset() (scroll.Scroll, error) {
	_ = n.session.Close()
	if err := n.store.Reset(); err != nil {
		return scroll.Scroll{}, err
	}
	resp := struct {
		Reset bool `json:"reset"`
	}{Reset: true}
	return n.store2("/reset", resp, "vault/reset@v1")
}

// writeAutoConnect reports whether the session is already unlocked and
// recent enough to skip prompting for a passphrase, touching its activity
// clock if so. It mutates nothing in the store.
func (n *Namespace) writeAutoConnect(data json.RawMessage) (scroll.Scroll, error) {
	if !n.session.IsActive() {
		resp := struct {
			AutoConnected bool `json:"autoConnected"`
		}{AutoConnected: false}
		return n.store2("/auto-connect", resp, "vault/status@v1")
	}
	n.session.Touch()
	resp := struct {
		AutoConnected bool `json:"autoConnected"`
	}{AutoConnected: true}
	return n.store2("/auto-connect", resp, "vault/status@v1")
}

func (n *Namespace) store2(path string, v interface{}, typ string) (scroll.Scroll, error) {
	sc, err := scroll.Typed(path, v, typ)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrInternal, err)
	}
	if prev, ok := n.cache[path]; ok {
		sc = sc.Finalize(time.Now().UTC(), prev.Metadata.CreatedAt).WithVersion(prev.Metadata.Version + 1)
	} else {
		sc = sc.Finalize(time.Now().UTC(), nil).WithVersion(1)
	}
	n.cache[path] = sc
	return sc, nil
}

// WriteScroll delegates to Write: /vault/* is operation-shaped.
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
	for _, p := range []string{"/status", "/init", "/unlock", "/lock", "/reset", "/auto-connect"} {
		if ninepath.IsUnderPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Watch is unsupported: vault lifecycle is polled via /status, not
// streamed.
func (n *Namespace) Watch(pattern string) (*namespace.Receiver, error) {
	if err := n.checkClosed(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: /vault has no watchable state", nineerr.ErrUnavailable)
}

// Close idempotently shuts the namespace down, scrubbing the live session
// key.
func (n *Namespace) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true
	return n.session.Close()
}
