package repository

import (
	"context"
	"time"

	"github.com/iliyamo/parking-ledger/internal/model"
)

// Reader is the read side shared by snapshots and write transactions.
// Every call made through one Reader observes the same logical instant.
type Reader interface {
	GetUser(ctx context.Context, id uint64) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	GetSlot(ctx context.Context, id uint64) (model.Slot, error)
	// ListOccupancy returns every slot ordered by id, joined with the
	// occupant's username.
	ListOccupancy(ctx context.Context) ([]model.SlotOccupancy, error)
	// SlotByOccupant returns the slot held by userID or ErrNotFound.
	SlotByOccupant(ctx context.Context, userID uint64) (model.Slot, error)
	// ListTransactions returns the newest entries first.
	ListTransactions(ctx context.Context, userID uint64, limit int) ([]model.Transaction, error)
	// SumTransactions recomputes a balance from the ledger.
	SumTransactions(ctx context.Context, userID uint64) (model.Money, error)
}

// Tx is a read-write unit of work.  Writes become visible to other
// readers only when the surrounding WithTx call commits, and all of them
// become visible together.
type Tx interface {
	Reader
	// LockUser reads a user row for update.
	LockUser(ctx context.Context, id uint64) (model.User, error)
	// LockSlot reads a slot row for update.
	LockSlot(ctx context.Context, id uint64) (model.Slot, error)
	// CompareAndSwapSlot sets the occupant of slot id when its version
	// still equals expectedVersion, and bumps the version.  A nil occupant
	// releases the slot.  Returns ErrVersionConflict on a version miss and
	// ErrOccupantExists when the occupant already holds another slot.
	CompareAndSwapSlot(ctx context.Context, id, expectedVersion uint64, occupant *uint64, since *time.Time) (model.Slot, error)
	// AppendTransaction writes t and moves the cached balance by t.Amount.
	// It fills t.BalanceAfter (and t.ID / t.CreatedAt when empty) and
	// returns ErrInsufficientFunds instead of going negative.
	AppendTransaction(ctx context.Context, t *model.Transaction) error
	// CreateUser inserts u and sets u.ID.  Returns ErrDuplicate on a
	// username or email clash.
	CreateUser(ctx context.Context, u *model.User) error
	// EnsureSlots creates the missing slots among ids 1..n.
	EnsureSlots(ctx context.Context, n int) (int, error)
}

// Store is the persistence contract of the engine.
type Store interface {
	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	// ReadSnapshot runs fn against a consistent, read-only view.
	ReadSnapshot(ctx context.Context, fn func(r Reader) error) error
}
