package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/parking-ledger/internal/model"
)

// MemStore is an in-process Store used by tests and by the "memory" store
// driver.  Transactions work on a private copy of the data and are
// validated against the committed state when they commit, so concurrent
// transactions on unrelated users and slots never wait on each other.
type MemStore struct {
	mu         sync.RWMutex
	users      map[uint64]model.User
	slots      map[uint64]model.Slot
	ledger     map[uint64][]model.Transaction // per user, oldest first
	nextUserID uint64
	now        func() time.Time
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:  make(map[uint64]model.User),
		slots:  make(map[uint64]model.Slot),
		ledger: make(map[uint64][]model.Transaction),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// view copies the committed state.  Callers hold s.mu.
func (s *MemStore) view() *memView {
	ledger := make(map[uint64][]model.Transaction, len(s.ledger))
	for id, entries := range s.ledger {
		// committed entries are never modified, sharing the backing
		// array up to len is safe
		ledger[id] = entries[:len(entries):len(entries)]
	}
	return &memView{
		users:  maps.Clone(s.users),
		slots:  maps.Clone(s.slots),
		ledger: ledger,
	}
}

// ReadSnapshot hands fn a copy of the committed state.
func (s *MemStore) ReadSnapshot(ctx context.Context, fn func(r Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	v := s.view()
	s.mu.RUnlock()
	return fn(v)
}

// WithTx runs fn against a private copy and merges its writes on success.
func (s *MemStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	tx := &memTx{
		memView:      s.view(),
		store:        s,
		slotBase:     make(map[uint64]uint64),
		createdSlots: make(map[uint64]bool),
		createdUsers: make(map[uint64]bool),
	}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

// commit validates tx against whatever was committed since it started and
// applies its writes atomically.
func (s *MemStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, base := range tx.slotBase {
		cur, ok := s.slots[id]
		if !ok || cur.Version != base {
			return fmt.Errorf("slot %d: %w", id, ErrVersionConflict)
		}
	}

	for id := range tx.createdUsers {
		u := tx.users[id]
		for _, other := range s.users {
			if other.Username == u.Username || other.Email == u.Email {
				return ErrDuplicate
			}
		}
	}

	// Re-derive balances from the committed state so the result is the
	// same as if the entries had been applied one by one right now.
	balances := make(map[uint64]model.Money, len(tx.appended))
	for i := range tx.appended {
		t := &tx.appended[i]
		bal, seen := balances[t.UserID]
		if !seen {
			bal = s.users[t.UserID].Balance
		}
		bal += t.Amount
		if bal < 0 {
			return fmt.Errorf("user %d: %w", t.UserID, ErrInsufficientFunds)
		}
		t.BalanceAfter = bal
		balances[t.UserID] = bal
	}

	merged := maps.Clone(s.slots)
	for id := range tx.slotBase {
		merged[id] = tx.slots[id]
	}
	for id := range tx.createdSlots {
		if _, exists := merged[id]; !exists {
			merged[id] = tx.slots[id]
		}
	}
	holders := make(map[uint64]uint64, len(merged))
	for _, sl := range merged {
		if !sl.Occupied() {
			continue
		}
		if other, dup := holders[sl.Occupant()]; dup {
			return fmt.Errorf("user %d holds slots %d and %d: %w", sl.Occupant(), other, sl.ID, ErrOccupantExists)
		}
		holders[sl.Occupant()] = sl.ID
	}

	for id := range tx.createdUsers {
		s.users[id] = tx.users[id]
	}
	for id, bal := range balances {
		u := s.users[id]
		u.Balance = bal
		s.users[id] = u
	}
	for _, t := range tx.appended {
		s.ledger[t.UserID] = append(s.ledger[t.UserID], t)
	}
	s.slots = merged
	return nil
}

// memView is an immutable Reader over copied state.
type memView struct {
	users  map[uint64]model.User
	slots  map[uint64]model.Slot
	ledger map[uint64][]model.Transaction
}

func (v *memView) GetUser(_ context.Context, id uint64) (model.User, error) {
	u, ok := v.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (v *memView) ListUsers(_ context.Context) ([]model.User, error) {
	ids := make([]uint64, 0, len(v.users))
	for id := range v.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, v.users[id])
	}
	return out, nil
}

func (v *memView) GetSlot(_ context.Context, id uint64) (model.Slot, error) {
	sl, ok := v.slots[id]
	if !ok {
		return model.Slot{}, ErrNotFound
	}
	return sl, nil
}

func (v *memView) ListOccupancy(_ context.Context) ([]model.SlotOccupancy, error) {
	ids := make([]uint64, 0, len(v.slots))
	for id := range v.slots {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]model.SlotOccupancy, 0, len(ids))
	for _, id := range ids {
		sl := v.slots[id]
		occ := model.SlotOccupancy{Slot: sl}
		if sl.Occupied() {
			occ.Username = v.users[sl.Occupant()].Username
		}
		out = append(out, occ)
	}
	return out, nil
}

func (v *memView) SlotByOccupant(_ context.Context, userID uint64) (model.Slot, error) {
	for _, sl := range v.slots {
		if sl.OccupiedBy(userID) {
			return sl, nil
		}
	}
	return model.Slot{}, ErrNotFound
}

func (v *memView) ListTransactions(_ context.Context, userID uint64, limit int) ([]model.Transaction, error) {
	entries := v.ledger[userID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]model.Transaction, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (v *memView) SumTransactions(_ context.Context, userID uint64) (model.Money, error) {
	var sum model.Money
	for _, t := range v.ledger[userID] {
		sum += t.Amount
	}
	return sum, nil
}

// memTx records which rows it touched so commit can validate them.
type memTx struct {
	*memView
	store *MemStore

	slotBase     map[uint64]uint64 // version seen before the first write
	createdSlots map[uint64]bool
	createdUsers map[uint64]bool
	appended     []model.Transaction
}

// LockUser is a plain read: row exclusion is provided by the caller's
// keyed locks and conflicts are caught at commit.
func (t *memTx) LockUser(ctx context.Context, id uint64) (model.User, error) {
	return t.GetUser(ctx, id)
}

func (t *memTx) LockSlot(ctx context.Context, id uint64) (model.Slot, error) {
	return t.GetSlot(ctx, id)
}

func (t *memTx) CompareAndSwapSlot(_ context.Context, id, expectedVersion uint64, occupant *uint64, since *time.Time) (model.Slot, error) {
	sl, ok := t.slots[id]
	if !ok {
		return model.Slot{}, ErrNotFound
	}
	if sl.Version != expectedVersion {
		return model.Slot{}, ErrVersionConflict
	}
	if occupant != nil {
		for _, other := range t.slots {
			if other.ID != id && other.OccupiedBy(*occupant) {
				return model.Slot{}, ErrOccupantExists
			}
		}
	}
	if _, touched := t.slotBase[id]; !touched && !t.createdSlots[id] {
		t.slotBase[id] = sl.Version
	}
	sl.OccupantUserID = cloneID(occupant)
	sl.OccupiedSince = nil
	if occupant != nil && since != nil {
		ts := *since
		sl.OccupiedSince = &ts
	}
	sl.Version++
	sl.UpdatedAt = t.store.now()
	t.slots[id] = sl
	return sl, nil
}

func (t *memTx) AppendTransaction(_ context.Context, tr *model.Transaction) error {
	u, ok := t.users[tr.UserID]
	if !ok {
		return ErrNotFound
	}
	next := u.Balance + tr.Amount
	if next < 0 {
		return ErrInsufficientFunds
	}
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = t.store.now()
	}
	tr.BalanceAfter = next
	u.Balance = next
	t.users[tr.UserID] = u
	t.ledger[tr.UserID] = append(t.ledger[tr.UserID], *tr)
	t.appended = append(t.appended, *tr)
	return nil
}

func (t *memTx) CreateUser(_ context.Context, u *model.User) error {
	for _, other := range t.users {
		if other.Username == u.Username || other.Email == u.Email {
			return ErrDuplicate
		}
	}
	t.store.mu.Lock()
	t.store.nextUserID++
	id := t.store.nextUserID
	t.store.mu.Unlock()

	u.ID = id
	u.Balance = 0
	if u.CreatedAt.IsZero() {
		u.CreatedAt = t.store.now()
	}
	t.users[id] = *u
	t.createdUsers[id] = true
	return nil
}

func (t *memTx) EnsureSlots(_ context.Context, n int) (int, error) {
	created := 0
	for id := uint64(1); id <= uint64(max(n, 0)); id++ {
		if _, ok := t.slots[id]; ok {
			continue
		}
		t.slots[id] = model.Slot{ID: id, UpdatedAt: t.store.now()}
		t.createdSlots[id] = true
		created++
	}
	return created, nil
}

func cloneID(id *uint64) *uint64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
