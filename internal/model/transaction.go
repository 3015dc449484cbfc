package model

import "time"

// TransactionKind enumerates the balance-affecting ledger entries.
type TransactionKind string

const (
	KindRecharge     TransactionKind = "recharge"
	KindParkCharge   TransactionKind = "park_charge"
	KindUnparkCharge TransactionKind = "unpark_charge"
)

// Transaction is an immutable row of the append-only ledger.  Amount is
// signed: credits are positive and charges negative.  BalanceAfter is the
// user's balance once this entry is applied.
type Transaction struct {
	ID           string          // transactions.id (UUID)
	UserID       uint64          // transactions.user_id
	Kind         TransactionKind // transactions.kind
	Amount       Money           // transactions.amount
	BalanceAfter Money           // transactions.balance_after
	Reference    string          // transactions.reference (UPI id or slot:<id>)
	CreatedAt    time.Time       // transactions.created_at
}
