package reactor

import (
	"encoding/json"
	"fmt"

	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/scroll"
)

// project converts a single external event into the one or more scrolls it
// produces. A send completion, for instance, yields both a payment scroll
// at /tx/<id> and a balance-hint scroll at /balance (spec.md §4.13): the
// reactor's caller (a watcher on /balance) can choose to treat the hint as
// fresh data or as a cache-invalidation signal, per spec.md's open
// question on this point.
func project(ev Event) ([]scroll.Scroll, error) {
	switch ev.Kind {
	case EventSendCompleted, EventPaymentReceived:
		return projectPayment(ev)
	case EventSynced:
		return projectSynced(ev)
	case EventDepositClaimed, EventDepositPending:
		return projectDeposit(ev)
	default:
		return nil, fmt.Errorf("%w: unknown event kind %q", nineerr.ErrInvalidData, ev.Kind)
	}
}

func projectPayment(ev Event) ([]scroll.Scroll, error) {
	var payload struct {
		ID      string          `json:"id"`
		Balance json.RawMessage `json:"balance,omitempty"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode payment event: %v", nineerr.ErrInvalidData, err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("%w: payment event missing id", nineerr.ErrInvalidData)
	}

	txScroll, err := scroll.Typed("/tx/"+payload.ID, ev.Payload, "wallet/tx@v1")
	if err != nil {
		return nil, err
	}
	out := []scroll.Scroll{txScroll}

	if len(payload.Balance) > 0 {
		balScroll, err := scroll.Typed("/balance", payload.Balance, "wallet/balance@v1")
		if err != nil {
			return nil, err
		}
		out = append(out, balScroll)
	}
	return out, nil
}

func projectSynced(ev Event) ([]scroll.Scroll, error) {
	sc, err := scroll.Typed("/synced", ev.Payload, "wallet/synced@v1")
	if err != nil {
		return nil, err
	}
	return []scroll.Scroll{sc}, nil
}

func projectDeposit(ev Event) ([]scroll.Scroll, error) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode deposit event: %v", nineerr.ErrInvalidData, err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("%w: deposit event missing id", nineerr.ErrInvalidData)
	}
	sc, err := scroll.Typed("/deposit/"+payload.ID, ev.Payload, "wallet/deposit@v1")
	if err != nil {
		return nil, err
	}
	return []scroll.Scroll{sc}, nil
}
