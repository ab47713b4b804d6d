// Package identityns implements the /identity/* mount: mnemonic generation,
// mnemonic validation, and Mobi identifier derivation, over the pure
// functions in internal/identity and internal/mobi. Its only state is a
// cache of the last response written to each path; a read returns that
// cached response.
package identityns

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/obiverse/beewallet-core/internal/identity"
	"github.com/obiverse/beewallet-core/internal/mobi"
	"github.com/obiverse/beewallet-core/internal/namespace"
	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/ninepath"
	"github.com/obiverse/beewallet-core/internal/scroll"
)

// Namespace serves /mnemonic, /validate, /mobinumber as writes: each is a
// request/response operation (generate a phrase, check a phrase, derive an
// identifier), not durable state, so there is nothing meaningful to Read
// back beyond the last response, which is cached like the reactor's hot
// cache.
type Namespace struct {
	cache  map[string]scroll.Scroll
	closed bool
}

var _ namespace.Namespace = (*Namespace)(nil)

// New returns an empty identity namespace.
func New() *Namespace {
	return &Namespace{cache: make(map[string]scroll.Scroll)}
}

func (n *Namespace) checkClosed() error {
	if n.closed {
		return nineerr.ErrClosed
	}
	return nil
}

// Read returns the last response written to path, if any.
func (n *Namespace) Read(path string) (scroll.Scroll, bool, error) {
	if err := n.checkClosed(); err != nil {
		return scroll.Scroll{}, false, err
	}
	if err := ninepath.Validate(path); err != nil {
		return scroll.Scroll{}, false, err
	}
	sc, ok := n.cache[path]
	return sc, ok, nil
}

// Write dispatches /mnemonic, /validate, /mobinumber.
func (n *Namespace) Write(path string, data json.RawMessage) (scroll.Scroll, error) {
	if err := n.checkClosed(); err != nil {
		return scroll.Scroll{}, err
	}
	if err := ninepath.Validate(path); err != nil {
		return scroll.Scroll{}, err
	}

	switch path {
	case "/mnemonic":
		return n.writeMnemonic(data)
	case "/validate":
		return n.writeValidate(data)
	case "/mobinumber":
		return n.writeMobinumber(data)
	default:
		return scroll.Scroll{}, fmt.Errorf("%w: no writable operation at %q", nineerr.ErrUnavailable, path)
	}
}

func (n *Namespace) writeMnemonic(data json.RawMessage) (scroll.Scroll, error) {
	req := struct {
		EntropyBits int `json:"entropyBits"`
	}{EntropyBits: 128}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return scroll.Scroll{}, fmt.Errorf("%w: decode /mnemonic payload: %v", nineerr.ErrInvalidData, err)
		}
	}
	phrase, err := identity.NewMnemonic(req.EntropyBits)
	if err != nil {
		return scroll.Scroll{}, err
	}
	resp := struct {
		Mnemonic string `json:"mnemonic"`
	}{Mnemonic: phrase}
	return n.store("/mnemonic", resp, "identity/mnemonic@v1")
}

func (n *Namespace) writeValidate(data json.RawMessage) (scroll.Scroll, error) {
	var req struct {
		Mnemonic string `json:"mnemonic"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode /validate payload: %v", nineerr.ErrInvalidData, err)
	}
	resp := struct {
		Valid bool `json:"valid"`
	}{Valid: identity.ValidateMnemonic(req.Mnemonic)}
	return n.store("/validate", resp, "identity/validate@v1")
}

func (n *Namespace) writeMobinumber(data json.RawMessage) (scroll.Scroll, error) {
	var req struct {
		Mnemonic   string `json:"mnemonic"`
		Passphrase string `json:"passphrase,omitempty"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode /mobinumber payload: %v", nineerr.ErrInvalidData, err)
	}
	master, err := identity.MasterKey(req.Mnemonic, req.Passphrase)
	if err != nil {
		return scroll.Scroll{}, err
	}
	pubHex, err := identity.PublicKeyHex(master)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrCryptoError, err)
	}
	id, err := mobi.DeriveFromHex(pubHex)
	if err != nil {
		return scroll.Scroll{}, err
	}
	resp := struct {
		Display  string `json:"display"`
		Extended string `json:"extended"`
		Long     string `json:"long"`
		Full     string `json:"full"`
	}{Display: id.Display, Extended: id.Extended, Long: id.Lng, Full: id.Full}
	return n.store("/mobinumber", resp, "identity/mobinumber@v1")
}

func (n *Namespace) store(path string, v interface{}, typ string) (scroll.Scroll, error) {
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

// WriteScroll delegates to Write: /identity/* is operation-shaped.
func (n *Namespace) WriteScroll(s scroll.Scroll) (scroll.Scroll, error) {
	return n.Write(s.Key, s.Data)
}

// List returns every cached response path under prefix.
func (n *Namespace) List(prefix string) ([]string, error) {
	if err := n.checkClosed(); err != nil {
		return nil, err
	}
	if err := ninepath.Validate(prefix); err != nil {
		return nil, err
	}
	var out []string
	for k := range n.cache {
		if ninepath.IsUnderPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Watch is unsupported: /identity/* operations are request/response, not a
// stream.
func (n *Namespace) Watch(pattern string) (*namespace.Receiver, error) {
	if err := n.checkClosed(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: /identity has no watchable state", nineerr.ErrUnavailable)
}

// Close idempotently shuts the namespace down.
func (n *Namespace) Close() error {
	n.closed = true
	return nil
}
