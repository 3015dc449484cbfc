package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/parking-ledger/internal/lock"
	"github.com/iliyamo/parking-ledger/internal/model"
	"github.com/iliyamo/parking-ledger/internal/queue"
	"github.com/iliyamo/parking-ledger/internal/repository"
)

// EventPublisher ships domain events after commit.  Implementations must
// be safe for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Fees are the flat amounts the engine charges and accepts.
type Fees struct {
	Park        model.Money
	Unpark      model.Money
	MaxRecharge model.Money
}

// DefaultFees matches the product: free parking, 100.00 to leave.
var DefaultFees = Fees{
	Park:        0,
	Unpark:      model.NewMoney(100, 0),
	MaxRecharge: model.NewMoney(100000, 0),
}

const (
	defaultLockTimeout = 2 * time.Second
	publishTimeout     = 2 * time.Second
)

// upiPattern accepts ids such as "alice@okbank" or "9876543210@upi".  The
// longest match is 128 characters, the width of transactions.reference.
var upiPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{1,62}@[A-Za-z][A-Za-z0-9.-]{1,63}$`)

// Engine performs park, unpark and recharge as atomic operations over the
// slot table and the ledger.  Each operation first takes the exclusion
// units of the entities it touches (user before slot, with a bounded
// wait) and then re-validates every precondition inside one store
// transaction, so a client acting on a stale poll can never corrupt state.
type Engine struct {
	store       repository.Store
	locks       *lock.Keyed
	pub         EventPublisher
	fees        Fees
	lockTimeout time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithLocks(l *lock.Keyed) Option { return func(e *Engine) { e.locks = l } }

func WithPublisher(p EventPublisher) Option { return func(e *Engine) { e.pub = p } }

func WithFees(f Fees) Option { return func(e *Engine) { e.fees = f } }

func WithLockTimeout(d time.Duration) Option { return func(e *Engine) { e.lockTimeout = d } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// NewEngine builds an engine over store.
func NewEngine(store repository.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		locks:       lock.NewKeyed(),
		fees:        DefaultFees,
		lockTimeout: defaultLockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fees reports the amounts the engine was configured with.
func (e *Engine) Fees() Fees { return e.fees }

// ParkRequest asks to occupy SlotID.  ExpectedVersion, when set, is the
// slot version the client last saw; a mismatch fails with ErrStaleSlot.
type ParkRequest struct {
	UserID          uint64
	SlotID          uint64
	ExpectedVersion *uint64
}

// UnparkRequest asks to release SlotID.
type UnparkRequest struct {
	UserID          uint64
	SlotID          uint64
	ExpectedVersion *uint64
}

// RechargeRequest credits Amount to the user's wallet.  Reference is the
// UPI id the money came from.
type RechargeRequest struct {
	UserID    uint64
	Amount    model.Money
	Reference string
}

// Result describes a committed operation.
type Result struct {
	Message     string
	Slot        *model.Slot
	Balance     model.Money
	Transaction *model.Transaction
}

// Park assigns an empty slot to the user.  Parking is refused at a zero
// balance and, when a park fee is configured, below the fee.
func (e *Engine) Park(ctx context.Context, req ParkRequest) (Result, error) {
	if req.UserID == 0 || req.SlotID == 0 {
		return Result{}, ErrInvalidInput.withMessage("user_id and sid are required.")
	}

	var res Result
	err := e.locked(ctx, []string{lock.UserKey(req.UserID), lock.SlotKey(req.SlotID)}, func() error {
		return e.store.WithTx(ctx, func(tx repository.Tx) error {
			user, err := tx.LockUser(ctx, req.UserID)
			if err != nil {
				return notFound(err, ErrUserNotFound)
			}
			held, err := tx.SlotByOccupant(ctx, user.ID)
			switch {
			case err == nil:
				return ErrAlreadyParked.withMessage("You have already parked in slot %d.", held.ID)
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}

			slot, err := tx.LockSlot(ctx, req.SlotID)
			if err != nil {
				return notFound(err, ErrSlotNotFound)
			}
			if slot.Occupied() {
				return ErrSlotTaken
			}
			if req.ExpectedVersion != nil && *req.ExpectedVersion != slot.Version {
				return ErrStaleSlot
			}
			if user.Balance <= 0 || user.Balance < e.fees.Park {
				return ErrInsufficientBalance
			}

			now := e.now()
			updated, err := tx.CompareAndSwapSlot(ctx, slot.ID, slot.Version, &user.ID, &now)
			if err != nil {
				return conflict(err, ErrSlotTaken)
			}
			res.Slot = &updated
			res.Balance = user.Balance

			if e.fees.Park > 0 {
				t := &model.Transaction{
					UserID:    user.ID,
					Kind:      model.KindParkCharge,
					Amount:    e.fees.Park.Neg(),
					Reference: slotReference(slot.ID),
					CreatedAt: now,
				}
				if err := tx.AppendTransaction(ctx, t); err != nil {
					return err
				}
				res.Transaction = t
				res.Balance = t.BalanceAfter
			}
			return nil
		})
	})
	if err != nil {
		return Result{}, e.fail(ctx, "park", err)
	}

	res.Message = fmt.Sprintf("Parked in slot %d.", req.SlotID)
	e.logger(ctx).Info().Uint64("user_id", req.UserID).Uint64("slot_id", req.SlotID).
		Uint64("version", res.Slot.Version).Msg("slot parked")
	e.publish(ctx, slotEvent(queue.EventSlotParked, req.UserID, res, "user", e.now()))
	return res, nil
}

// Unpark releases the caller's own slot and charges the unpark fee in the
// same transaction.  If the balance cannot cover the fee nothing changes.
func (e *Engine) Unpark(ctx context.Context, req UnparkRequest) (Result, error) {
	if req.UserID == 0 || req.SlotID == 0 {
		return Result{}, ErrInvalidInput.withMessage("user_id and sid are required.")
	}

	var res Result
	err := e.locked(ctx, []string{lock.UserKey(req.UserID), lock.SlotKey(req.SlotID)}, func() error {
		return e.store.WithTx(ctx, func(tx repository.Tx) error {
			user, err := tx.LockUser(ctx, req.UserID)
			if err != nil {
				return notFound(err, ErrUserNotFound)
			}
			slot, err := tx.LockSlot(ctx, req.SlotID)
			if err != nil {
				return notFound(err, ErrSlotNotFound)
			}
			switch {
			case !slot.Occupied():
				return ErrSlotNotOccupied
			case !slot.OccupiedBy(user.ID):
				return ErrNotSlotOwner
			}
			if req.ExpectedVersion != nil && *req.ExpectedVersion != slot.Version {
				return ErrStaleSlot
			}
			res, err = e.release(ctx, tx, user, slot)
			return err
		})
	})
	if err != nil {
		return Result{}, e.fail(ctx, "unpark", err)
	}

	res.Message = fmt.Sprintf("Unparked from slot %d. %s charged.", req.SlotID, e.fees.Unpark)
	e.logger(ctx).Info().Uint64("user_id", req.UserID).Uint64("slot_id", req.SlotID).
		Str("balance", res.Balance.String()).Msg("slot released")
	e.publish(ctx, slotEvent(queue.EventSlotReleased, req.UserID, res, "user", e.now()))
	return res, nil
}

// AdminUnpark releases whatever slot userID holds, without the ownership
// check but with the same fee and balance rule as Unpark.
func (e *Engine) AdminUnpark(ctx context.Context, userID uint64) (Result, error) {
	if userID == 0 {
		return Result{}, ErrInvalidInput.withMessage("user_id is required.")
	}

	var res Result
	err := func() error {
		lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
		defer cancel()

		releaseUser, err := e.locks.Lock(lockCtx, lock.UserKey(userID))
		if err != nil {
			return err
		}
		defer releaseUser()

		// With the user lock held no other engine call can move this
		// user's occupancy, so the slot found here stays valid.
		var slotID uint64
		err = e.store.ReadSnapshot(ctx, func(r repository.Reader) error {
			if _, err := r.GetUser(ctx, userID); err != nil {
				return notFound(err, ErrUserNotFound)
			}
			held, err := r.SlotByOccupant(ctx, userID)
			if err != nil {
				return notFound(err, ErrNotParked)
			}
			slotID = held.ID
			return nil
		})
		if err != nil {
			return err
		}

		releaseSlot, err := e.locks.Lock(lockCtx, lock.SlotKey(slotID))
		if err != nil {
			return err
		}
		defer releaseSlot()

		return e.store.WithTx(ctx, func(tx repository.Tx) error {
			user, err := tx.LockUser(ctx, userID)
			if err != nil {
				return notFound(err, ErrUserNotFound)
			}
			slot, err := tx.LockSlot(ctx, slotID)
			if err != nil {
				return notFound(err, ErrSlotNotFound)
			}
			if !slot.OccupiedBy(userID) {
				return ErrNotParked
			}
			res, err = e.release(ctx, tx, user, slot)
			return err
		})
	}()
	if err != nil {
		return Result{}, e.fail(ctx, "admin_unpark", err)
	}

	res.Message = fmt.Sprintf("User %d unparked from slot %d.", userID, res.Slot.ID)
	e.logger(ctx).Info().Uint64("user_id", userID).Uint64("slot_id", res.Slot.ID).Msg("slot released by admin")
	e.publish(ctx, slotEvent(queue.EventSlotReleased, userID, res, "admin", e.now()))
	return res, nil
}

// release charges the unpark fee and clears the slot.  The caller has
// verified the occupant.
func (e *Engine) release(ctx context.Context, tx repository.Tx, user model.User, slot model.Slot) (Result, error) {
	res := Result{Balance: user.Balance}
	if fee := e.fees.Unpark; fee > 0 {
		if user.Balance < fee {
			return Result{}, ErrInsufficientBalance.withMessage(
				"Insufficient balance: unpark fee is %s, balance is %s. Please recharge.", fee, user.Balance)
		}
		t := &model.Transaction{
			UserID:    user.ID,
			Kind:      model.KindUnparkCharge,
			Amount:    fee.Neg(),
			Reference: slotReference(slot.ID),
			CreatedAt: e.now(),
		}
		if err := tx.AppendTransaction(ctx, t); err != nil {
			return Result{}, err
		}
		res.Transaction = t
		res.Balance = t.BalanceAfter
	}
	updated, err := tx.CompareAndSwapSlot(ctx, slot.ID, slot.Version, nil, nil)
	if err != nil {
		return Result{}, conflict(err, ErrStaleSlot)
	}
	res.Slot = &updated
	return res, nil
}

// Recharge credits the wallet.  It takes only the user's exclusion unit
// and never touches slot state.
func (e *Engine) Recharge(ctx context.Context, req RechargeRequest) (Result, error) {
	if req.UserID == 0 {
		return Result{}, ErrInvalidInput.withMessage("user_id is required.")
	}
	if req.Amount <= 0 {
		return Result{}, ErrInvalidAmount
	}
	if req.Amount > e.fees.MaxRecharge {
		return Result{}, ErrInvalidAmount.withMessage("Amount must not exceed %s.", e.fees.MaxRecharge)
	}
	if !upiPattern.MatchString(req.Reference) {
		return Result{}, ErrInvalidReference
	}

	var res Result
	err := e.locked(ctx, []string{lock.UserKey(req.UserID)}, func() error {
		return e.store.WithTx(ctx, func(tx repository.Tx) error {
			if _, err := tx.LockUser(ctx, req.UserID); err != nil {
				return notFound(err, ErrUserNotFound)
			}
			t := &model.Transaction{
				UserID:    req.UserID,
				Kind:      model.KindRecharge,
				Amount:    req.Amount,
				Reference: req.Reference,
				CreatedAt: e.now(),
			}
			if err := tx.AppendTransaction(ctx, t); err != nil {
				return err
			}
			res.Transaction = t
			res.Balance = t.BalanceAfter
			return nil
		})
	})
	if err != nil {
		return Result{}, e.fail(ctx, "recharge", err)
	}

	res.Message = fmt.Sprintf("Recharged %s. New balance %s.", req.Amount, res.Balance)
	e.logger(ctx).Info().Uint64("user_id", req.UserID).Str("amount", req.Amount.String()).
		Str("balance", res.Balance.String()).Msg("wallet recharged")
	e.publish(ctx, queue.Event{
		Type:          queue.EventWalletRecharged,
		UserID:        req.UserID,
		Amount:        req.Amount,
		BalanceAfter:  res.Balance,
		TransactionID: res.Transaction.ID,
		Actor:         "user",
		OccurredAt:    e.now(),
	})
	return res, nil
}

// locked runs fn while holding keys.  Only the acquisition is bounded by
// the lock timeout; fn runs under the caller's context.
func (e *Engine) locked(ctx context.Context, keys []string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	release, err := e.locks.LockAll(lockCtx, keys...)
	cancel()
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (e *Engine) fail(ctx context.Context, op string, err error) error {
	return classify(e.logger(ctx), op, err)
}

func (e *Engine) logger(ctx context.Context) *zerolog.Logger {
	return loggerFrom(ctx, &e.log)
}

// publish is best effort: the change has already committed.
func (e *Engine) publish(ctx context.Context, ev queue.Event) {
	if e.pub == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.pub.Publish(pctx, ev); err != nil {
		e.logger(ctx).Warn().Err(err).Str("event", ev.Type).Msg("event not published")
	}
}

func slotEvent(typ string, userID uint64, res Result, actor string, at time.Time) queue.Event {
	ev := queue.Event{
		Type:         typ,
		UserID:       userID,
		SlotID:       res.Slot.ID,
		SlotVersion:  res.Slot.Version,
		BalanceAfter: res.Balance,
		Actor:        actor,
		OccurredAt:   at,
	}
	if res.Transaction != nil {
		ev.Amount = res.Transaction.Amount
		ev.TransactionID = res.Transaction.ID
	}
	return ev
}

func slotReference(id uint64) string { return fmt.Sprintf("slot:%d", id) }

// notFound maps a repository miss onto the given typed error.
func notFound(err error, target *Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}

// conflict maps a lost version race onto the given typed error.
func conflict(err error, target *Error) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return target.with(err)
	}
	return err
}
