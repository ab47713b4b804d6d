package reactor

import "encoding/json"

// WalletSDK is the opaque, blocking boundary to the external wallet
// SDK (send/receive/invoice/balance) described in spec.md's "Out of scope"
// section. The reactor treats it purely as an async event source plus a
// set of blocking operations; it never reaches into the SDK's internals.
//
// Every method may block the caller's goroutine on real network or signing
// work; the reactor's Read and Write call them on the caller's goroutine,
// while its ingest loop consumes Events on its own goroutine so watch
// subscribers stay decoupled (see spec.md §5, "Blocking and
// suspension points").
type WalletSDK interface {
	// Connect establishes the SDK connection; Events begins delivering
	// external occurrences only after a successful Connect.
	Connect() error
	Disconnect() error
	Connected() bool
	Network() string

	Balance() (json.RawMessage, error)
	Address() (json.RawMessage, error)
	Pubkey() (json.RawMessage, error)
	Transactions(limit int) (json.RawMessage, error)
	Tx(id string) (json.RawMessage, bool, error)

	Send(to string, amount int64, feeRate *int64) (json.RawMessage, error)
	Invoice(amount int64, description string) (json.RawMessage, error)
	Sync() error
	Sign(message string) (json.RawMessage, error)
	Verify(message, signature, pubkey string) (json.RawMessage, error)
	FeeEstimate(to string, amount int64) (json.RawMessage, error)

	// Events returns the channel of external occurrences (send completion,
	// payment arrival, sync completion, deposit claimed/unclaimed) the
	// reactor's ingest loop converts into scrolls. Closed when the SDK
	// disconnects.
	Events() <-chan Event
}

// EventKind tags the external occurrence an Event carries.
type EventKind string

const (
	EventSendCompleted   EventKind = "send_completed"
	EventPaymentReceived EventKind = "payment_received"
	EventSynced          EventKind = "synced"
	EventDepositClaimed  EventKind = "deposit_claimed"
	EventDepositPending  EventKind = "deposit_pending"
)

// Event is a single external occurrence delivered by the WalletSDK's event
// channel. Payload is SDK-specific JSON the reactor's ingest routine knows
// how to project into one or more scrolls.
type Event struct {
	Kind    EventKind
	Payload json.RawMessage
}
