package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-ledger/internal/model"
)

var at = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{
			name: "parked",
			ev:   Event{Type: EventSlotParked, UserID: 4, SlotID: 2, SlotVersion: 7, OccurredAt: at},
			want: "[2026-03-01T09:30:00Z] Slot parked | user_id=4 | slot_id=2 | version=7 | charge=0.00 | balance=0.00\n",
		},
		{
			name: "released by admin",
			ev: Event{Type: EventSlotReleased, UserID: 4, SlotID: 2, SlotVersion: 8, Amount: -10000,
				BalanceAfter: 5000, Actor: "admin", OccurredAt: at},
			want: "[2026-03-01T09:30:00Z] Slot released | user_id=4 | slot_id=2 | version=8 | charge=-100.00 | balance=50.00 | by=admin\n",
		},
		{
			name: "recharged",
			ev:   Event{Type: EventWalletRecharged, UserID: 4, Amount: 15000, BalanceAfter: 15000, TransactionID: "abc", OccurredAt: at},
			want: "[2026-03-01T09:30:00Z] Wallet recharged | user_id=4 | amount=150.00 | balance=150.00 | tx=abc\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatLine(tt.ev))
		})
	}
}

func TestHandleMessageAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	c := NewAuditConsumer("amqp://unused", dir, zerolog.Nop())

	for _, amount := range []model.Money{100, 200} {
		body, err := json.Marshal(Event{Type: EventWalletRecharged, UserID: 1, Amount: amount, BalanceAfter: amount, OccurredAt: at})
		require.NoError(t, err)
		require.NoError(t, c.handleMessage(body))
	}

	data, err := os.ReadFile(filepath.Join(dir, auditFileName))
	require.NoError(t, err)
	assert.Equal(t,
		"[2026-03-01T09:30:00Z] Wallet recharged | user_id=1 | amount=1.00 | balance=1.00 | tx=\n"+
			"[2026-03-01T09:30:00Z] Wallet recharged | user_id=1 | amount=2.00 | balance=2.00 | tx=\n",
		string(data))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	c := NewAuditConsumer("amqp://unused", t.TempDir(), zerolog.Nop())
	assert.Error(t, c.handleMessage([]byte("not json")))
	assert.Error(t, c.handleMessage([]byte(`{"user_id":1}`)))
}
