package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-ledger/internal/config"
	"github.com/iliyamo/parking-ledger/internal/model"
	"github.com/iliyamo/parking-ledger/internal/queue"
	"github.com/iliyamo/parking-ledger/internal/repository"
)

type fixture struct {
	store    *repository.MemStore
	engine   *Engine
	reader   *SnapshotReader
	admin    *Admin
	accounts *Accounts
	events   *recordingPublisher
}

// newFixture seeds three slots and alice (150.00), bob (50.00) and
// carol (0.00).
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := repository.NewMemStore()
	events := &recordingPublisher{}
	opts = append([]Option{WithPublisher(events)}, opts...)
	f := &fixture{
		store:    store,
		engine:   NewEngine(store, opts...),
		reader:   NewSnapshotReader(store, zerolog.Nop()),
		accounts: NewAccounts(store, zerolog.Nop()),
		events:   events,
	}
	f.admin = NewAdmin(store, f.engine, zerolog.Nop())
	require.NoError(t, f.accounts.ApplySeed(context.Background(), config.Seed{
		Slots: 3,
		Users: []config.SeedUser{
			{Username: "alice", Email: "alice@example.com", LicensePlate: "KA01AB1234", Balance: model.NewMoney(150, 0)},
			{Username: "bob", Email: "bob@example.com", LicensePlate: "KA02CD5678", Balance: model.NewMoney(50, 0)},
			{Username: "carol", Email: "carol@example.com", LicensePlate: "KA03EF9012"},
		},
	}))
	return f
}

func (f *fixture) userID(t *testing.T, name string) uint64 {
	t.Helper()
	var id uint64
	require.NoError(t, f.store.ReadSnapshot(context.Background(), func(r repository.Reader) error {
		users, err := r.ListUsers(context.Background())
		for _, u := range users {
			if u.Username == name {
				id = u.ID
			}
		}
		return err
	}))
	require.NotZero(t, id, "user %s", name)
	return id
}

func (f *fixture) user(t *testing.T, id uint64) model.User {
	t.Helper()
	var u model.User
	require.NoError(t, f.store.ReadSnapshot(context.Background(), func(r repository.Reader) error {
		var err error
		u, err = r.GetUser(context.Background(), id)
		return err
	}))
	return u
}

func (f *fixture) slot(t *testing.T, id uint64) model.Slot {
	t.Helper()
	var s model.Slot
	require.NoError(t, f.store.ReadSnapshot(context.Background(), func(r repository.Reader) error {
		var err error
		s, err = r.GetSlot(context.Background(), id)
		return err
	}))
	return s
}

func (f *fixture) requireLedgerConsistent(t *testing.T) {
	t.Helper()
	bad, err := f.admin.VerifyLedger(context.Background())
	require.NoError(t, err)
	require.Empty(t, bad)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
