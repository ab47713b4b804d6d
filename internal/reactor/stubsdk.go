package reactor

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/obiverse/beewallet-core/internal/nineerr"
)

// StubSDK is a placeholder WalletSDK for hosts that have not wired a real
// wallet backend: the actual SDK bridge is an external collaborator
// (spec.md's "Out of scope"), supplied by the desktop host at runtime. It
// lets cmd/beewallet stand up a complete, runnable System — /status always
// answers, Connect succeeds locally, and every wallet operation beyond that
// fails with ErrUnavailable until a real SDK is substituted.
type StubSDK struct {
	mu        sync.Mutex
	network   string
	connected bool
	events    chan Event
}

var _ WalletSDK = (*StubSDK)(nil)

// NewStubSDK returns a disconnected stub tagged with network.
func NewStubSDK(network string) *StubSDK {
	return &StubSDK{network: network, events: make(chan Event, 16)}
}

func (s *StubSDK) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *StubSDK) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		close(s.events)
	}
	s.connected = false
	return nil
}

func (s *StubSDK) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *StubSDK) Network() string { return s.network }

func (s *StubSDK) unavailable(op string) error {
	return fmt.Errorf("%w: no wallet sdk wired for %s", nineerr.ErrUnavailable, op)
}

func (s *StubSDK) Balance() (json.RawMessage, error)      { return nil, s.unavailable("balance") }
func (s *StubSDK) Address() (json.RawMessage, error)      { return nil, s.unavailable("address") }
func (s *StubSDK) Pubkey() (json.RawMessage, error)       { return nil, s.unavailable("pubkey") }
func (s *StubSDK) Transactions(int) (json.RawMessage, error) {
	return nil, s.unavailable("transactions")
}
func (s *StubSDK) Tx(string) (json.RawMessage, bool, error) {
	return nil, false, s.unavailable("tx")
}
func (s *StubSDK) Send(string, int64, *int64) (json.RawMessage, error) {
	return nil, s.unavailable("send")
}
func (s *StubSDK) Invoice(int64, string) (json.RawMessage, error) {
	return nil, s.unavailable("invoice")
}
func (s *StubSDK) Sync() error { return s.unavailable("sync") }
func (s *StubSDK) Sign(string) (json.RawMessage, error) {
	return nil, s.unavailable("sign")
}
func (s *StubSDK) Verify(string, string, string) (json.RawMessage, error) {
	return nil, s.unavailable("verify")
}
func (s *StubSDK) FeeEstimate(string, int64) (json.RawMessage, error) {
	return nil, s.unavailable("fee-estimate")
}
func (s *StubSDK) Events() <-chan Event { return s.events }
