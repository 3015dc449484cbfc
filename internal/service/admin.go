package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/parking-ledger/internal/model"
	"github.com/iliyamo/parking-ledger/internal/repository"
)

// User statuses reported by the admin overview.
const (
	StatusParked = "parked"
	StatusIdle   = "idle"
)

// UserView is one row of the admin overview.
type UserView struct {
	ID              uint64      `json:"id"`
	Username        string      `json:"username"`
	Email           string      `json:"email"`
	LicensePlate    string      `json:"licence_plat"`
	Balance         model.Money `json:"balance"`
	Role            model.Role  `json:"role"`
	SlotID          *uint64     `json:"slot_id"`
	Status          string      `json:"status"`
	ParkedSince     *time.Time  `json:"parked_since"`
	DurationSeconds int64       `json:"duration_seconds"`
}

// Summary counts are derived from the same read as the rows, never kept
// as running counters.
type Summary struct {
	TotalUsers   int         `json:"total_users"`
	TotalSlots   int         `json:"total_slots"`
	TotalParked  int         `json:"total_parked"`
	Available    int         `json:"available"`
	TotalBalance model.Money `json:"total_balance"`
}

type Overview struct {
	Users   []UserView `json:"users"`
	Summary Summary    `json:"summary"`
	AsOf    time.Time  `json:"as_of"`
}

// LedgerDiscrepancy reports a user whose cached balance disagrees with
// the sum of their ledger entries.
type LedgerDiscrepancy struct {
	UserID   uint64      `json:"user_id"`
	Username string      `json:"username"`
	Cached   model.Money `json:"cached_balance"`
	Ledger   model.Money `json:"ledger_balance"`
}

// Admin is the privileged read and override path.
type Admin struct {
	store  repository.Store
	engine *Engine
	now    func() time.Time
	log    zerolog.Logger
}

func NewAdmin(store repository.Store, engine *Engine, log zerolog.Logger) *Admin {
	return &Admin{store: store, engine: engine, now: func() time.Time { return time.Now().UTC() }, log: log}
}

// GetAll joins users and slots in one consistent read.
func (a *Admin) GetAll(ctx context.Context) (Overview, error) {
	var (
		users []model.User
		occ   []model.SlotOccupancy
	)
	err := a.store.ReadSnapshot(ctx, func(r repository.Reader) error {
		var err error
		if users, err = r.ListUsers(ctx); err != nil {
			return err
		}
		occ, err = r.ListOccupancy(ctx)
		return err
	})
	if err != nil {
		return Overview{}, classify(loggerFrom(ctx, &a.log), "get_all", err)
	}
	now := a.now()
	return buildOverview(users, occ, now), nil
}

func buildOverview(users []model.User, occ []model.SlotOccupancy, now time.Time) Overview {
	held := make(map[uint64]model.Slot, len(occ))
	ov := Overview{Users: make([]UserView, 0, len(users)), AsOf: now}
	for _, o := range occ {
		if o.Occupied() {
			held[o.Occupant()] = o.Slot
			ov.Summary.TotalParked++
		}
	}
	ov.Summary.TotalSlots = len(occ)
	ov.Summary.Available = ov.Summary.TotalSlots - ov.Summary.TotalParked

	for _, u := range users {
		v := UserView{
			ID:           u.ID,
			Username:     u.Username,
			Email:        u.Email,
			LicensePlate: u.LicensePlate,
			Balance:      u.Balance,
			Role:         u.Role,
			Status:       StatusIdle,
		}
		if sl, ok := held[u.ID]; ok {
			sid := sl.ID
			v.SlotID = &sid
			v.Status = StatusParked
			v.ParkedSince = sl.OccupiedSince
			if sl.OccupiedSince != nil && now.After(*sl.OccupiedSince) {
				v.DurationSeconds = int64(now.Sub(*sl.OccupiedSince) / time.Second)
			}
		}
		ov.Summary.TotalBalance += u.Balance
		ov.Users = append(ov.Users, v)
	}
	ov.Summary.TotalUsers = len(users)
	return ov
}

// AdminUnpark releases the user's slot on their behalf.
func (a *Admin) AdminUnpark(ctx context.Context, userID uint64) (Result, error) {
	return a.engine.AdminUnpark(ctx, userID)
}

// VerifyLedger recomputes every balance from the ledger.  An empty result
// means the cached balances are consistent.
func (a *Admin) VerifyLedger(ctx context.Context) ([]LedgerDiscrepancy, error) {
	out := []LedgerDiscrepancy{}
	err := a.store.ReadSnapshot(ctx, func(r repository.Reader) error {
		users, err := r.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			sum, err := r.SumTransactions(ctx, u.ID)
			if err != nil {
				return err
			}
			if sum != u.Balance {
				out = append(out, LedgerDiscrepancy{UserID: u.ID, Username: u.Username, Cached: u.Balance, Ledger: sum})
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(loggerFrom(ctx, &a.log), "verify_ledger", err)
	}
	if len(out) > 0 {
		loggerFrom(ctx, &a.log).Error().Int("users", len(out)).Msg("ledger discrepancies found")
	}
	return out, nil
}
