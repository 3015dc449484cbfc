package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-ledger/internal/config"
	"github.com/iliyamo/parking-ledger/internal/model"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.accounts.Register(ctx, RegisterRequest{Username: "dave_99", Email: " Dave@Example.com ", LicensePlate: "mh-12 xy 4321"})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "dave@example.com", u.Email)
	assert.Equal(t, "MH12XY4321", u.LicensePlate)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Equal(t, model.Money(0), u.Balance)

	_, err = f.accounts.Register(ctx, RegisterRequest{Username: "dave_99", Email: "other@example.com", LicensePlate: "MH12XY0000"})
	assert.ErrorIs(t, err, ErrDuplicateUser)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"short username", RegisterRequest{Username: "ab", Email: "ab@example.com", LicensePlate: "AB1234"}},
		{"bad username", RegisterRequest{Username: "a b c", Email: "abc@example.com", LicensePlate: "AB1234"}},
		{"bad email", RegisterRequest{Username: "abc", Email: "not-an-email", LicensePlate: "AB1234"}},
		{"display name email", RegisterRequest{Username: "abc", Email: "Abc <abc@example.com>", LicensePlate: "AB1234"}},
		{"short plate", RegisterRequest{Username: "abc", Email: "abc@example.com", LicensePlate: "A1"}},
		{"plate symbols", RegisterRequest{Username: "abc", Email: "abc@example.com", LicensePlate: "AB#1234"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestApplySeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed := config.Seed{
		Slots: 5,
		Users: []config.SeedUser{
			{Username: "alice", Email: "alice@example.com", LicensePlate: "KA01AB1234", Balance: model.NewMoney(150, 0)},
			{Username: "root", Email: "root@example.com", LicensePlate: "ADMIN1", Role: model.RoleAdmin},
		},
	}
	require.NoError(t, f.accounts.ApplySeed(ctx, seed))

	ov, err := f.admin.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, ov.Summary.TotalSlots)
	assert.Equal(t, 4, ov.Summary.TotalUsers)
	assert.Equal(t, model.NewMoney(150, 0), f.user(t, f.userID(t, "alice")).Balance)
	assert.Equal(t, model.RoleAdmin, f.user(t, f.userID(t, "root")).Role)
	f.requireLedgerConsistent(t)
}

func TestProvisionSlots(t *testing.T) {
	f := newFixture(t)
	created, err := f.accounts.ProvisionSlots(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	_, err = f.accounts.ProvisionSlots(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
