package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-ledger/internal/model"
	"github.com/iliyamo/parking-ledger/internal/repository"
)

func TestGetAll(t *testing.T) {
	parkedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return parkedAt }))
	f.admin.now = func() time.Time { return parkedAt.Add(90 * time.Minute) }
	ctx := context.Background()
	alice := f.userID(t, "alice")

	_, err := f.engine.Park(ctx, ParkRequest{UserID: alice, SlotID: 3})
	require.NoError(t, err)

	ov, err := f.admin.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{
		TotalUsers:   3,
		TotalSlots:   3,
		TotalParked:  1,
		Available:    2,
		TotalBalance: model.NewMoney(200, 0),
	}, ov.Summary)

	require.Len(t, ov.Users, 3)
	a := ov.Users[0]
	assert.Equal(t, "alice", a.Username)
	assert.Equal(t, StatusParked, a.Status)
	require.NotNil(t, a.SlotID)
	assert.Equal(t, uint64(3), *a.SlotID)
	assert.Equal(t, int64(90*60), a.DurationSeconds)

	b := ov.Users[1]
	assert.Equal(t, StatusIdle, b.Status)
	assert.Nil(t, b.SlotID)
	assert.Zero(t, b.DurationSeconds)
}

func TestVerifyLedgerReportsDrift(t *testing.T) {
	f := newFixture(t)
	f.requireLedgerConsistent(t)

	// the stores keep both in step, so drift is simulated by a reader
	// that under-reports bob's ledger
	drift := driftStore{Store: f.store, userID: f.userID(t, "bob")}
	admin := NewAdmin(drift, f.engine, f.admin.log)
	bad, err := admin.VerifyLedger(context.Background())
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, "bob", bad[0].Username)
	assert.Equal(t, model.NewMoney(50, 0), bad[0].Cached)
	assert.Equal(t, model.NewMoney(49, 0), bad[0].Ledger)
}

type driftStore struct {
	repository.Store
	userID uint64
}

func (d driftStore) ReadSnapshot(ctx context.Context, fn func(r repository.Reader) error) error {
	return d.Store.ReadSnapshot(ctx, func(r repository.Reader) error {
		return fn(driftReader{Reader: r, userID: d.userID})
	})
}

type driftReader struct {
	repository.Reader
	userID uint64
}

func (d driftReader) SumTransactions(ctx context.Context, userID uint64) (model.Money, error) {
	sum, err := d.Reader.SumTransactions(ctx, userID)
	if userID == d.userID {
		sum -= model.NewMoney(1, 0)
	}
	return sum, err
}
