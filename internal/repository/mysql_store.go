package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/parking-ledger/internal/model"
)

// SQLStore implements Store on top of MySQL/InnoDB.  Write transactions
// run at READ COMMITTED and take row locks (SELECT ... FOR UPDATE) on the
// user and slot rows they change; plain reads inside them see the latest
// committed data and take no gap locks.  Snapshots run in a read-only
// REPEATABLE READ transaction, so every read in one snapshot sees the
// same MVCC view.
type SQLStore struct {
	db     *sql.DB
	users  *UserRepo
	slots  *SlotRepo
	ledger *LedgerRepo
	now    func() time.Time
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:     db,
		users:  NewUserRepo(),
		slots:  NewSlotRepo(),
		ledger: NewLedgerRepo(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithTx begins a transaction, runs fn and commits.  Any error from fn or
// from the commit rolls the transaction back.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&sqlTx{sqlReader: sqlReader{store: s, q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", translate(err))
	}
	committed = true
	return nil
}

// ReadSnapshot runs fn inside a read-only transaction.
func (s *SQLStore) ReadSnapshot(ctx context.Context, fn func(r Reader) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(sqlReader{store: s, q: tx})
}

type sqlReader struct {
	store *SQLStore
	q     queryer
}

func (r sqlReader) GetUser(ctx context.Context, id uint64) (model.User, error) {
	return r.store.users.GetByID(ctx, r.q, id, false)
}

func (r sqlReader) ListUsers(ctx context.Context) ([]model.User, error) {
	return r.store.users.List(ctx, r.q)
}

func (r sqlReader) GetSlot(ctx context.Context, id uint64) (model.Slot, error) {
	return r.store.slots.GetByID(ctx, r.q, id, false)
}

func (r sqlReader) ListOccupancy(ctx context.Context) ([]model.SlotOccupancy, error) {
	return r.store.slots.ListOccupancy(ctx, r.q)
}

// SlotByOccupant is a plain read even inside a write transaction.  The
// caller holds the user row lock, which every occupancy change for that
// user takes first, and uq_slots_occupant rejects a second slot anyway.
// A locking read here would gap-lock the occupant index and deadlock
// parks of unrelated users.
func (r sqlReader) SlotByOccupant(ctx context.Context, userID uint64) (model.Slot, error) {
	return r.store.slots.GetByOccupant(ctx, r.q, userID)
}

func (r sqlReader) ListTransactions(ctx context.Context, userID uint64, limit int) ([]model.Transaction, error) {
	return r.store.ledger.ListByUser(ctx, r.q, userID, limit)
}

func (r sqlReader) SumTransactions(ctx context.Context, userID uint64) (model.Money, error) {
	return r.store.ledger.SumByUser(ctx, r.q, userID)
}

type sqlTx struct {
	sqlReader
}

func (t *sqlTx) LockUser(ctx context.Context, id uint64) (model.User, error) {
	return t.store.users.GetByID(ctx, t.q, id, true)
}

func (t *sqlTx) LockSlot(ctx context.Context, id uint64) (model.Slot, error) {
	return t.store.slots.GetByID(ctx, t.q, id, true)
}

func (t *sqlTx) CompareAndSwapSlot(ctx context.Context, id, expectedVersion uint64, occupant *uint64, since *time.Time) (model.Slot, error) {
	return t.store.slots.CompareAndSwap(ctx, t.q, id, expectedVersion, occupant, since, t.store.now())
}

// AppendTransaction moves the cached balance first so that the guarded
// UPDATE decides whether the entry is allowed, then records the entry with
// the resulting balance.
func (t *sqlTx) AppendTransaction(ctx context.Context, tr *model.Transaction) error {
	balance, err := t.store.users.AddToBalance(ctx, t.q, tr.UserID, tr.Amount)
	if err != nil {
		return err
	}
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = t.store.now()
	}
	tr.BalanceAfter = balance
	return t.store.ledger.Insert(ctx, t.q, tr)
}

func (t *sqlTx) CreateUser(ctx context.Context, u *model.User) error {
	return t.store.users.Create(ctx, t.q, u)
}

func (t *sqlTx) EnsureSlots(ctx context.Context, n int) (int, error) {
	return t.store.slots.Ensure(ctx, t.q, n, t.store.now())
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemStore)(nil)
	_ Tx    = (*sqlTx)(nil)
	_ Tx    = (*memTx)(nil)
)
