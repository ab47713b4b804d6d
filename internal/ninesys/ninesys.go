// Package ninesys assembles the mount kernel and exposes the universal
// entry point used by the desktop host (spec.md §6): a single
// {op, path, data?} command dispatched over the fixed path ontology
// (/system, /identity, /vault, /wallet).
package ninesys

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/obiverse/beewallet-core/internal/identityns"
	"github.com/obiverse/beewallet-core/internal/kernel"
	"github.com/obiverse/beewallet-core/internal/namespace"
	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/reactor"
	"github.com/obiverse/beewallet-core/internal/sysns"
	"github.com/obiverse/beewallet-core/internal/vault"
	"github.com/obiverse/beewallet-core/internal/vaultns"
)

// Op is one of the three operations the universal entry point accepts.
// write_scroll is a kernel-internal capability, not part of the external
// surface named in spec.md §6.
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
	OpList  Op = "list"
)

// Command is the universal entry point request.
type Command struct {
	Op   Op              `json:"op"`
	Path string          `json:"path"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is the universal entry point reply: on success Scroll carries a
// read or write result and Paths a list result (a read of a missing path
// sets neither); Error is populated on failure.
type Response struct {
	OK     bool            `json:"ok"`
	Scroll json.RawMessage `json:"scroll,omitempty"`
	Paths  []string        `json:"paths,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// System is the assembled 9S core: a mount kernel with /system, /identity,
// /vault, /wallet mounted, reachable through the universal entry point.
type System struct {
	kernel *kernel.Kernel
	sys    *sysns.Namespace
	ident  *identityns.Namespace
	vault  *vaultns.Namespace
	wallet *reactor.Reactor
	log    *logrus.Entry
}

// New assembles a System: sdk backs both /system's lifecycle controls and
// /wallet's reactive core (the same underlying connection), vaultStore
// backs /vault, and sessionTimeoutSecs configures the vault's unlock
// session (0 selects the package default).
func New(sdk reactor.WalletSDK, vaultStore *vault.Store, sessionTimeoutSecs uint64) *System {
	k := kernel.New()

	sys := sysns.New(sdk)
	ident := identityns.New()
	vns := vaultns.New(vaultStore, sessionTimeoutSecs)
	wallet := reactor.New(sdk)

	_ = k.Mount("/system", sys)
	_ = k.Mount("/identity", ident)
	_ = k.Mount("/vault", vns)
	_ = k.Mount("/wallet", wallet)

	return &System{
		kernel: k,
		sys:    sys,
		ident:  ident,
		vault:  vns,
		wallet: wallet,
		log:    logrus.WithField("component", "ninesys"),
	}
}

// WithPersistence attaches a write-through persistence adapter to the
// wallet mount. Call before Start.
func (s *System) WithPersistence(store namespace.Namespace) *System {
	s.wallet.WithPersistence(store)
	return s
}

// Start loads the wallet's persisted state (if any) and begins ingesting
// wallet SDK events. /system and /vault need no start step: they are
// driven entirely by explicit command writes.
func (s *System) Start() error {
	if err := s.wallet.Load(); err != nil {
		return err
	}
	return s.wallet.Start()
}

// Close shuts the assembled system down, including the wallet SDK
// connection and the vault's unlocked session.
func (s *System) Close() error {
	var firstErr error
	for _, c := range []func() error{s.wallet.Close, s.vault.Close, s.ident.Close, s.sys.Close} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Kernel exposes the underlying mount table for callers that want direct
// namespace.Namespace access instead of the Command/Response envelope
// (e.g. the debug HTTP server's read-only introspection).
func (s *System) Kernel() *kernel.Kernel {
	return s.kernel
}

// Dispatch executes cmd against the mount kernel and always returns a
// Response — even on failure, per spec.md §6 ("{ok: false, error:
// message}" rather than a Go error).
func (s *System) Dispatch(cmd Command) Response {
	switch cmd.Op {
	case OpRead:
		return s.dispatchRead(cmd.Path)
	case OpWrite:
		return s.dispatchWrite(cmd.Path, cmd.Data)
	case OpList:
		return s.dispatchList(cmd.Path)
	default:
		return errorResponse(fmt.Errorf("%w: unknown op %q", nineerr.ErrInvalidData, cmd.Op))
	}
}

func (s *System) dispatchRead(path string) Response {
	sc, ok, err := s.kernel.Read(path)
	if err != nil {
		return errorResponse(err)
	}
	if !ok {
		return Response{OK: true}
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return errorResponse(fmt.Errorf("%w: %v", nineerr.ErrInternal, err))
	}
	return Response{OK: true, Scroll: raw}
}

func (s *System) dispatchWrite(path string, data json.RawMessage) Response {
	sc, err := s.kernel.Write(path, data)
	if err != nil {
		return errorResponse(err)
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return errorResponse(fmt.Errorf("%w: %v", nineerr.ErrInternal, err))
	}
	return Response{OK: true, Scroll: raw}
}

func (s *System) dispatchList(path string) Response {
	paths, err := s.kernel.List(path)
	if err != nil {
		return errorResponse(err)
	}
	return Response{OK: true, Paths: paths}
}

func errorResponse(err error) Response {
	return Response{OK: false, Error: err.Error()}
}
