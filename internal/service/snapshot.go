package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/parking-ledger/internal/model"
	"github.com/iliyamo/parking-ledger/internal/repository"
)

const (
	DefaultTransactionLimit = 20
	MaxTransactionLimit     = 200
)

// SlotView is one slot as seen by a polling client.  UserID and Username
// are null for an empty slot.
type SlotView struct {
	SlotID        uint64     `json:"sid"`
	UserID        *uint64    `json:"uid"`
	Username      *string    `json:"username"`
	Version       uint64     `json:"version"`
	OccupiedSince *time.Time `json:"occupied_since"`
}

// Snapshot is every slot plus the requesting user's wallet as of a single
// logical instant.
type Snapshot struct {
	User       model.User
	ParkedSlot *uint64
	Slots      []SlotView
	// Revision is the sum of all slot versions.  It grows with every slot
	// change, so equal revisions mean an unchanged slot table.
	Revision uint64
	AsOf     time.Time
}

// SnapshotReader serves the polling read path.  It never takes the
// engine's exclusion units.
type SnapshotReader struct {
	store repository.Store
	now   func() time.Time
	log   zerolog.Logger
}

func NewSnapshotReader(store repository.Store, log zerolog.Logger) *SnapshotReader {
	return &SnapshotReader{store: store, now: func() time.Time { return time.Now().UTC() }, log: log}
}

// GetSnapshot returns the slot table and userID's balance read in one
// consistent view.
func (s *SnapshotReader) GetSnapshot(ctx context.Context, userID uint64) (Snapshot, error) {
	if userID == 0 {
		return Snapshot{}, ErrInvalidInput.withMessage("user_id is required.")
	}
	var snap Snapshot
	err := s.store.ReadSnapshot(ctx, func(r repository.Reader) error {
		user, err := r.GetUser(ctx, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		occ, err := r.ListOccupancy(ctx)
		if err != nil {
			return err
		}
		snap = buildSnapshot(user, occ)
		return nil
	})
	if err != nil {
		return Snapshot{}, classify(loggerFrom(ctx, &s.log), "snapshot", err)
	}
	snap.AsOf = s.now()
	return snap, nil
}

func buildSnapshot(user model.User, occ []model.SlotOccupancy) Snapshot {
	snap := Snapshot{User: user, Slots: make([]SlotView, 0, len(occ))}
	for _, o := range occ {
		v := SlotView{SlotID: o.ID, Version: o.Version}
		if o.Occupied() {
			uid := o.Occupant()
			name := o.Username
			v.UserID = &uid
			v.Username = &name
			v.OccupiedSince = o.OccupiedSince
			if uid == user.ID {
				sid := o.ID
				snap.ParkedSlot = &sid
			}
		}
		snap.Revision += o.Version
		snap.Slots = append(snap.Slots, v)
	}
	return snap
}

// Transactions returns the user's newest ledger entries.  limit defaults
// to DefaultTransactionLimit and is capped at MaxTransactionLimit.
func (s *SnapshotReader) Transactions(ctx context.Context, userID uint64, limit int) ([]model.Transaction, error) {
	if userID == 0 {
		return nil, ErrInvalidInput.withMessage("user_id is required.")
	}
	switch {
	case limit <= 0:
		limit = DefaultTransactionLimit
	case limit > MaxTransactionLimit:
		limit = MaxTransactionLimit
	}
	var out []model.Transaction
	err := s.store.ReadSnapshot(ctx, func(r repository.Reader) error {
		if _, err := r.GetUser(ctx, userID); err != nil {
			return notFound(err, ErrUserNotFound)
		}
		var err error
		out, err = r.ListTransactions(ctx, userID, limit)
		return err
	})
	if err != nil {
		return nil, classify(loggerFrom(ctx, &s.log), "transactions", err)
	}
	if out == nil {
		out = []model.Transaction{}
	}
	return out, nil
}
