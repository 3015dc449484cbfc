// Package queue defines the domain events published after a committed
// reservation or wallet change, the RabbitMQ publisher that ships them and
// the audit consumer that records them.
package queue

import (
	"time"

	"github.com/iliyamo/parking-ledger/internal/model"
)

// Event types double as routing keys on the events exchange.
const (
	EventSlotParked      = "slot.parked"
	EventSlotReleased    = "slot.released"
	EventWalletRecharged = "wallet.recharged"
)

// Event is published once the change it describes has committed.  It
// carries enough for downstream consumers to log or notify without
// querying the primary database.
type Event struct {
	Type          string      `json:"type"`
	UserID        uint64      `json:"user_id"`
	SlotID        uint64      `json:"slot_id,omitempty"`
	SlotVersion   uint64      `json:"slot_version,omitempty"`
	Amount        model.Money `json:"amount"`
	BalanceAfter  model.Money `json:"balance_after"`
	TransactionID string      `json:"transaction_id,omitempty"`
	Actor         string      `json:"actor,omitempty"` // "user" or "admin"
	OccurredAt    time.Time   `json:"occurred_at"`
}
