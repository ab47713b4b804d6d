// Package reactor implements the reactive wallet core (spec.md §4.13): it
// ingests asynchronous events from an external wallet SDK, projects them
// into scrolls, keeps a hot in-memory cache of last-known state, dispatches
// matching scrolls to pattern-subscribed watchers, and optionally
// write-throughs persisted scrolls to a 9S store. The Reactor itself
// implements namespace.Namespace, so it mounts into a kernel exactly like
// any other backend.
package reactor

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
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

const watcherChanCap = 256

// Ephemeral paths are never write-through persisted, regardless of the
// persistence adapter: they describe connection-session state, not wallet
// data.
var ephemeralPaths = map[string]bool{
	"/synced": true,
	"/status": true,
}

// walletScrollType is the type tag of reactor result scrolls whose
// producer supplies no type of its own.
const walletScrollType = "wallet/generic@v1"

type watcher struct {
	pattern string
	ch      chan scroll.Scroll
	alive   atomic.Bool
}

// Reactor is the reactive wallet core.
type Reactor struct {
	sdk WalletSDK

	// persist is the optional write-through adapter. nil means "no
	// persistence": the hot cache is the only copy of wallet state.
	persist namespace.Namespace

	cacheMu sync.RWMutex
	cache   map[string]scroll.Scroll

	watchMu  sync.Mutex
	watchers []*watcher

	closed atomic.Bool
	done   chan struct{}

	log *logrus.Entry
}

var _ namespace.Namespace = (*Reactor)(nil)

// New constructs a reactor over sdk with no persistence bridge. Call
// WithPersistence to attach one, then Start to begin ingesting events.
func New(sdk WalletSDK) *Reactor {
	return &Reactor{
		sdk:   sdk,
		cache: make(map[string]scroll.Scroll),
		done:  make(chan struct{}),
		log:   logrus.WithField("component", "reactor"),
	}
}

// WithPersistence attaches a write-through persistence adapter. Must be
// called before Start/Load.
func (r *Reactor) WithPersistence(store namespace.Namespace) *Reactor {
	r.persist = store
	return r
}

// isPersisted reports whether path should be write-through persisted:
// everything except the ephemeral set.
func isPersisted(path string) bool {
	return !ephemeralPaths[path]
}

// Load populates the hot cache from the persistence adapter's current
// state under "/", if one is attached. Call once at startup before Start.
func (r *Reactor) Load() error {
	if r.persist == nil {
		return nil
	}
	keys, err := r.persist.List("/")
	if err != nil {
		return err
	}
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	for _, k := range keys {
		sc, ok, err := r.persist.Read(k)
		if err != nil {
			return err
		}
		if ok {
			r.cache[k] = sc
		}
	}
	return nil
}

// Start connects the SDK and spawns the ingest loop on an owned goroutine.
// Watch subscribers remain decoupled from any blocking the SDK does.
func (r *Reactor) Start() error {
	if err := r.sdk.Connect(); err != nil {
		return fmt.Errorf("%w: connect wallet sdk: %v", nineerr.ErrConnection, err)
	}
	go r.ingestLoop()
	return nil
}

func (r *Reactor) ingestLoop() {
	events := r.sdk.Events()
	for {
		select {
		case <-r.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			scrolls, err := project(ev)
			if err != nil {
				r.log.WithError(err).WithField("kind", ev.Kind).Warn("dropping unprojectable event")
				continue
			}
			for _, sc := range scrolls {
				r.ingest(sc)
			}
		}
	}
}

// ingest writes sc into the hot cache, write-throughs it if persisted, and
// dispatches it to matching watchers.
func (r *Reactor) ingest(sc scroll.Scroll) {
	now := time.Now().UTC()
	sc = sc.Finalize(now, nil)

	r.cacheMu.Lock()
	if prev, ok := r.cache[sc.Key]; ok {
		sc = sc.WithVersion(prev.Metadata.Version + 1)
	} else {
		sc = sc.WithVersion(1)
	}
	r.cache[sc.Key] = sc
	r.cacheMu.Unlock()

	if r.persist != nil && isPersisted(sc.Key) {
		if _, err := r.persist.WriteScroll(sc); err != nil {
			r.log.WithError(err).WithField("key", sc.Key).Warn("persistence write-through failed")
		}
	}

	r.dispatch(sc)
}

func (r *Reactor) dispatch(sc scroll.Scroll) {
	r.watchMu.Lock()
	for _, w := range r.watchers {
		if !w.alive.Load() || !ninepath.Matches(sc.Key, w.pattern) {
			continue
		}
		select {
		case w.ch <- sc:
		default:
			r.log.WithFields(logrus.Fields{"pattern": w.pattern, "key": sc.Key}).
				Debug("reactor watcher channel full, dropping event")
		}
	}
	r.pruneDeadLocked()
	r.watchMu.Unlock()
}

func (r *Reactor) pruneDeadLocked() {
	live := r.watchers[:0]
	for _, w := range r.watchers {
		if w.alive.Load() {
			live = append(live, w)
		}
	}
	r.watchers = live
}

func (r *Reactor) checkClosed() error {
	if r.closed.Load() {
		return nineerr.ErrClosed
	}
	return nil
}

// splitQuery pulls a "?k=v&..." suffix off path, returning the bare path
// and parsed query values.
func splitQuery(path string) (string, url.Values) {
	idx := strings.IndexByte(path, '?')
	if idx < 0 {
		return path, url.Values{}
	}
	q, err := url.ParseQuery(path[idx+1:])
	if err != nil {
		return path[:idx], url.Values{}
	}
	return path[:idx], q
}

// Read implements namespace.Namespace over the exposed read surface:
// /status, /balance, /address, /pubkey, /network, /transactions,
// /tx/<id>, plus anything already in the hot cache.
func (r *Reactor) Read(path string) (scroll.Scroll, bool, error) {
	if err := r.checkClosed(); err != nil {
		return scroll.Scroll{}, false, err
	}
	bare, query := splitQuery(path)
	if err := ninepath.Validate(bare); err != nil {
		return scroll.Scroll{}, false, err
	}

	switch {
	case bare == "/status":
		return r.readStatus()
	case bare == "/balance":
		return r.readLive(bare, r.sdk.Balance)
	case bare == "/address":
		return r.readLive(bare, r.sdk.Address)
	case bare == "/pubkey":
		return r.readLive(bare, r.sdk.Pubkey)
	case bare == "/network":
		raw, _ := json.Marshal(r.sdk.Network())
		return r.cacheResult(bare, raw, nil)
	case bare == "/transactions":
		limit := 0
		if v := query.Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}
		return r.readLive(bare, func() (json.RawMessage, error) { return r.sdk.Transactions(limit) })
	case strings.HasPrefix(bare, "/tx/"):
		id := strings.TrimPrefix(bare, "/tx/")
		raw, found, err := r.sdk.Tx(id)
		if err != nil {
			return scroll.Scroll{}, false, fmt.Errorf("%w: %v", nineerr.ErrConnection, err)
		}
		if !found {
			return scroll.Scroll{}, false, nil
		}
		return r.cacheResult(bare, raw, nil)
	}

	r.cacheMu.RLock()
	sc, ok := r.cache[bare]
	r.cacheMu.RUnlock()
	return sc, ok, nil
}

func (r *Reactor) readStatus() (scroll.Scroll, bool, error) {
	status := struct {
		Connected bool   `json:"connected"`
		Network   string `json:"network"`
		Backend   string `json:"backend"`
		Version   string `json:"version"`
	}{
		Connected: r.sdk.Connected(),
		Network:   r.sdk.Network(),
		Backend:   "reactor",
		Version:   "1",
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return scroll.Scroll{}, false, fmt.Errorf("%w: %v", nineerr.ErrInternal, err)
	}
	return r.cacheResult("/status", raw, nil)
}

// readLive fetches fresh SDK state and updates the hot cache, failing with
// ErrUnavailable if not connected.
func (r *Reactor) readLive(path string, fetch func() (json.RawMessage, error)) (scroll.Scroll, bool, error) {
	if !r.sdk.Connected() {
		r.cacheMu.RLock()
		sc, ok := r.cache[path]
		r.cacheMu.RUnlock()
		if ok {
			return sc, true, nil
		}
		return scroll.Scroll{}, false, nineerr.ErrUnavailable
	}
	raw, err := fetch()
	if err != nil {
		return scroll.Scroll{}, false, fmt.Errorf("%w: %v", nineerr.ErrConnection, err)
	}
	return r.cacheResult(path, raw, nil)
}

func (r *Reactor) cacheResult(path string, raw json.RawMessage, typ *string) (scroll.Scroll, bool, error) {
	sc, err := scroll.Typed(path, raw, walletType(typ))
	if err != nil {
		return scroll.Scroll{}, false, fmt.Errorf("%w: %v", nineerr.ErrInternal, err)
	}
	r.cacheMu.Lock()
	if prev, ok := r.cache[path]; ok {
		sc = sc.Finalize(time.Now().UTC(), prev.Metadata.CreatedAt).WithVersion(prev.Metadata.Version + 1)
	} else {
		sc = sc.Finalize(time.Now().UTC(), nil).WithVersion(1)
	}
	r.cache[path] = sc
	r.cacheMu.Unlock()
	return sc, true, nil
}

func walletType(typ *string) string {
	if typ != nil {
		return *typ
	}
	return walletScrollType
}

// Write implements namespace.Namespace over the exposed write surface:
// /send, /invoice, /sync, /sign, /verify, /fee-estimate. Every write fails
// with ErrUnavailable while disconnected.
func (r *Reactor) Write(path string, data json.RawMessage) (scroll.Scroll, error) {
	if err := r.checkClosed(); err != nil {
		return scroll.Scroll{}, err
	}
	if err := ninepath.Validate(path); err != nil {
		return scroll.Scroll{}, err
	}
	if !r.sdk.Connected() {
		return scroll.Scroll{}, nineerr.ErrUnavailable
	}

	switch path {
	case "/send":
		return r.writeSend(data)
	case "/invoice":
		return r.writeInvoice(data)
	case "/sync":
		return r.writeSync()
	case "/sign":
		return r.writeSign(data)
	case "/verify":
		return r.writeVerify(data)
	case "/fee-estimate":
		return r.writeFeeEstimate(data)
	default:
		return scroll.Scroll{}, fmt.Errorf("%w: no writable operation at %q", nineerr.ErrUnavailable, path)
	}
}

func (r *Reactor) writeSend(data json.RawMessage) (scroll.Scroll, error) {
	var req struct {
		To      string `json:"to"`
		Amount  int64  `json:"amount"`
		FeeRate *int64 `json:"feeRate,omitempty"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode /send payload: %v", nineerr.ErrInvalidData, err)
	}
	raw, err := r.sdk.Send(req.To, req.Amount, req.FeeRate)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrConnection, err)
	}
	sc, _, err := r.cacheResult("/tx/pending", raw, strPtr("wallet/payment@v1"))
	return sc, err
}

func (r *Reactor) writeInvoice(data json.RawMessage) (scroll.Scroll, error) {
	var req struct {
		Amount      int64  `json:"amount"`
		Description string `json:"description,omitempty"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode /invoice payload: %v", nineerr.ErrInvalidData, err)
	}
	raw, err := r.sdk.Invoice(req.Amount, req.Description)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrConnection, err)
	}
	sc, _, err := r.cacheResult("/invoice/last", raw, strPtr("wallet/invoice@v1"))
	return sc, err
}

func (r *Reactor) writeSync() (scroll.Scroll, error) {
	if err := r.sdk.Sync(); err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrConnection, err)
	}
	raw, _ := json.Marshal(struct {
		Synced bool  `json:"synced"`
		At     int64 `json:"at"`
	}{Synced: true, At: time.Now().UTC().Unix()})
	sc, err := scroll.Typed("/synced", raw, "wallet/synced@v1")
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrInternal, err)
	}
	sc = sc.Finalize(time.Now().UTC(), nil).WithVersion(1)
	r.cacheMu.Lock()
	r.cache["/synced"] = sc
	r.cacheMu.Unlock()
	r.dispatch(sc)
	return sc, nil
}

func (r *Reactor) writeSign(data json.RawMessage) (scroll.Scroll, error) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode /sign payload: %v", nineerr.ErrInvalidData, err)
	}
	raw, err := r.sdk.Sign(req.Message)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrConnection, err)
	}
	sc, err := scroll.Typed("/sign", raw, walletScrollType)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrInternal, err)
	}
	return sc.Finalize(time.Now().UTC(), nil).WithVersion(1), nil
}

func (r *Reactor) writeVerify(data json.RawMessage) (scroll.Scroll, error) {
	var req struct {
		Message   string `json:"message"`
		Signature string `json:"signature"`
		Pubkey    string `json:"pubkey"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode /verify payload: %v", nineerr.ErrInvalidData, err)
	}
	raw, err := r.sdk.Verify(req.Message, req.Signature, req.Pubkey)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrConnection, err)
	}
	sc, err := scroll.Typed("/verify", raw, walletScrollType)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrInternal, err)
	}
	return sc.Finalize(time.Now().UTC(), nil).WithVersion(1), nil
}

func (r *Reactor) writeFeeEstimate(data json.RawMessage) (scroll.Scroll, error) {
	var req struct {
		To     string `json:"to"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode /fee-estimate payload: %v", nineerr.ErrInvalidData, err)
	}
	raw, err := r.sdk.FeeEstimate(req.To, req.Amount)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrConnection, err)
	}
	sc, err := scroll.Typed("/fee-estimate", raw, walletScrollType)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrInternal, err)
	}
	return sc.Finalize(time.Now().UTC(), nil).WithVersion(1), nil
}

func strPtr(s string) *string { return &s }

// WriteScroll implements namespace.Namespace by delegating to Write: the
// reactor's write surface is operation-shaped, not scroll-shaped, so a
// caller-constructed scroll is only meaningful by its key and data.
func (r *Reactor) WriteScroll(s scroll.Scroll) (scroll.Scroll, error) {
	return r.Write(s.Key, s.Data)
}

// List implements namespace.Namespace: every hot-cache key under prefix.
func (r *Reactor) List(prefix string) ([]string, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}
	if err := ninepath.Validate(prefix); err != nil {
		return nil, err
	}
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	var out []string
	for k := range r.cache {
		if ninepath.IsUnderPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Watch implements namespace.Namespace: a receiver backed by a
// capacity-256 bounded channel; failed sends (subscriber can't keep up or
// has dropped) never block dispatch, and the watcher is pruned on the next
// dispatch once its receiver is closed.
func (r *Reactor) Watch(pattern string) (*namespace.Receiver, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}
	if err := ninepath.Validate(pattern); err != nil {
		return nil, err
	}

	w := &watcher{pattern: pattern, ch: make(chan scroll.Scroll, watcherChanCap)}
	w.alive.Store(true)

	r.watchMu.Lock()
	r.watchers = append(r.watchers, w)
	r.watchMu.Unlock()

	var once sync.Once
	closer := func() { once.Do(func() { w.alive.Store(false) }) }
	return namespace.NewReceiver(w.ch, closer), nil
}

// Close disconnects the SDK, stops the ingest loop, and makes all further
// operations fail with ErrClosed. Idempotent.
func (r *Reactor) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		close(r.done)
		return r.sdk.Disconnect()
	}
	return nil
}
