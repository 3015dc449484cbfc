package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/parking-ledger/internal/model"
)

// LedgerRepo provides data access to the append-only transactions table.
// Rows are never updated or deleted.
type LedgerRepo struct{}

func NewLedgerRepo() *LedgerRepo { return &LedgerRepo{} }

// Insert writes a fully populated entry.
func (r *LedgerRepo) Insert(ctx context.Context, q queryer, t *model.Transaction) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, kind, amount, balance_after, reference, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Kind, t.Amount, t.BalanceAfter, t.Reference, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("LedgerRepo.Insert: %w", translate(err))
	}
	return nil
}

// ListByUser returns up to limit entries for userID, newest first.
func (r *LedgerRepo) ListByUser(ctx context.Context, q queryer, userID uint64, limit int) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, kind, amount, balance_after, reference, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY seq DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("LedgerRepo.ListByUser: %w", err)
	}
	defer rows.Close()
	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.BalanceAfter, &t.Reference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("LedgerRepo.ListByUser (scanning row): %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LedgerRepo.ListByUser (rows error): %w", err)
	}
	return out, nil
}

// SumByUser recomputes a user's balance from the ledger.
func (r *LedgerRepo) SumByUser(ctx context.Context, q queryer, userID uint64) (model.Money, error) {
	var sum model.Money
	err := q.QueryRowContext(ctx,
		`SELECT CAST(COALESCE(SUM(amount), 0) AS SIGNED) FROM transactions WHERE user_id = ?`, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("LedgerRepo.SumByUser: %w", err)
	}
	return sum, nil
}
