package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-ledger/internal/model"
)

func seedMem(t *testing.T, slots int, balances ...model.Money) (*MemStore, []uint64) {
	t.Helper()
	s := NewMemStore()
	var ids []uint64
	err := s.WithTx(context.Background(), func(tx Tx) error {
		if _, err := tx.EnsureSlots(context.Background(), slots); err != nil {
			return err
		}
		for i, bal := range balances {
			u := &model.User{
				Username: "user" + string(rune('a'+i)),
				Email:    "user" + string(rune('a'+i)) + "@example.com",
				Role:     model.RoleUser,
			}
			if err := tx.CreateUser(context.Background(), u); err != nil {
				return err
			}
			ids = append(ids, u.ID)
			if bal > 0 {
				if err := tx.AppendTransaction(context.Background(), &model.Transaction{
					UserID: u.ID, Kind: model.KindRecharge, Amount: bal, Reference: "seed",
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
	return s, ids
}

func TestMemStore_RollbackOnError(t *testing.T) {
	s, ids := seedMem(t, 2, model.NewMoney(100, 0))
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx Tx) error {
		uid := ids[0]
		now := time.Now()
		_, err := tx.CompareAndSwapSlot(ctx, 1, 0, &uid, &now)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.ReadSnapshot(ctx, func(r Reader) error {
		sl, err := r.GetSlot(ctx, 1)
		require.NoError(t, err)
		assert.False(t, sl.Occupied())
		assert.Equal(t, uint64(0), sl.Version)
		return nil
	}))
}

func TestMemStore_CompareAndSwapSlot(t *testing.T) {
	s, ids := seedMem(t, 2, 0, 0)
	ctx := context.Background()
	a, b := ids[0], ids[1]
	now := time.Now()

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		sl, err := tx.CompareAndSwapSlot(ctx, 1, 0, &a, &now)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), sl.Version)
		assert.True(t, sl.OccupiedBy(a))
		return nil
	}))

	err := s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.CompareAndSwapSlot(ctx, 1, 0, &b, &now)
		return err
	})
	assert.ErrorIs(t, err, ErrVersionConflict)

	err = s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.CompareAndSwapSlot(ctx, 2, 0, &a, &now)
		return err
	})
	assert.ErrorIs(t, err, ErrOccupantExists)

	err = s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.CompareAndSwapSlot(ctx, 9, 0, &a, &now)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStore_CommitDetectsConcurrentWriter(t *testing.T) {
	s, ids := seedMem(t, 1, 0, 0)
	ctx := context.Background()
	a, b := ids[0], ids[1]
	now := time.Now()

	err := s.WithTx(ctx, func(tx Tx) error {
		sl, err := tx.LockSlot(ctx, 1)
		require.NoError(t, err)

		// another transaction takes the slot in the meantime
		require.NoError(t, s.WithTx(ctx, func(inner Tx) error {
			_, err := inner.CompareAndSwapSlot(ctx, 1, sl.Version, &b, &now)
			return err
		}))

		_, err = tx.CompareAndSwapSlot(ctx, 1, sl.Version, &a, &now)
		return err
	})
	assert.ErrorIs(t, err, ErrVersionConflict)

	require.NoError(t, s.ReadSnapshot(ctx, func(r Reader) error {
		sl, err := r.GetSlot(ctx, 1)
		require.NoError(t, err)
		assert.True(t, sl.OccupiedBy(b))
		return nil
	}))
}

func TestMemStore_AppendTransaction(t *testing.T) {
	s, ids := seedMem(t, 0, model.NewMoney(150, 0))
	ctx := context.Background()
	uid := ids[0]

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		tr := &model.Transaction{UserID: uid, Kind: model.KindUnparkCharge, Amount: -model.NewMoney(100, 0), Reference: "slot:1"}
		require.NoError(t, tx.AppendTransaction(ctx, tr))
		assert.Equal(t, model.NewMoney(50, 0), tr.BalanceAfter)
		assert.NotEmpty(t, tr.ID)
		return nil
	}))

	err := s.WithTx(ctx, func(tx Tx) error {
		return tx.AppendTransaction(ctx, &model.Transaction{UserID: uid, Kind: model.KindUnparkCharge, Amount: -model.NewMoney(100, 0)})
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, s.ReadSnapshot(ctx, func(r Reader) error {
		u, err := r.GetUser(ctx, uid)
		require.NoError(t, err)
		sum, err := r.SumTransactions(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, model.NewMoney(50, 0), u.Balance)
		assert.Equal(t, u.Balance, sum)

		txs, err := r.ListTransactions(ctx, uid, 10)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, model.KindUnparkCharge, txs[0].Kind)
		assert.Equal(t, model.KindRecharge, txs[1].Kind)
		return nil
	}))
}

func TestMemStore_CommitRecomputesBalances(t *testing.T) {
	s, ids := seedMem(t, 0, model.NewMoney(100, 0))
	ctx := context.Background()
	uid := ids[0]

	err := s.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.AppendTransaction(ctx, &model.Transaction{UserID: uid, Kind: model.KindUnparkCharge, Amount: -model.NewMoney(80, 0)}))
		// a concurrent charge drains the committed balance first
		require.NoError(t, s.WithTx(ctx, func(inner Tx) error {
			return inner.AppendTransaction(ctx, &model.Transaction{UserID: uid, Kind: model.KindUnparkCharge, Amount: -model.NewMoney(80, 0)})
		}))
		return nil
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, s.ReadSnapshot(ctx, func(r Reader) error {
		u, _ := r.GetUser(ctx, uid)
		assert.Equal(t, model.NewMoney(20, 0), u.Balance)
		return nil
	}))
}

func TestMemStore_SnapshotIsStable(t *testing.T) {
	s, ids := seedMem(t, 1, 0)
	ctx := context.Background()
	uid := ids[0]
	now := time.Now()

	require.NoError(t, s.ReadSnapshot(ctx, func(r Reader) error {
		require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
			_, err := tx.CompareAndSwapSlot(ctx, 1, 0, &uid, &now)
			return err
		}))
		occ, err := r.ListOccupancy(ctx)
		require.NoError(t, err)
		require.Len(t, occ, 1)
		assert.False(t, occ[0].Occupied())
		return nil
	}))

	require.NoError(t, s.ReadSnapshot(ctx, func(r Reader) error {
		occ, err := r.ListOccupancy(ctx)
		require.NoError(t, err)
		assert.True(t, occ[0].OccupiedBy(uid))
		assert.Equal(t, "usera", occ[0].Username)
		return nil
	}))
}

func TestMemStore_CreateUserDuplicate(t *testing.T) {
	s, _ := seedMem(t, 0, 0)
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx Tx) error {
		return tx.CreateUser(ctx, &model.User{Username: "usera", Email: "other@example.com", Role: model.RoleUser})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemStore_EnsureSlotsIsIdempotent(t *testing.T) {
	s, _ := seedMem(t, 3)
	ctx := context.Background()
	var created int
	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		var err error
		created, err = tx.EnsureSlots(ctx, 5)
		return err
	}))
	assert.Equal(t, 2, created)

	require.NoError(t, s.ReadSnapshot(ctx, func(r Reader) error {
		occ, _ := r.ListOccupancy(ctx)
		require.Len(t, occ, 5)
		for i, o := range occ {
			assert.Equal(t, uint64(i+1), o.ID)
		}
		return nil
	}))
}
