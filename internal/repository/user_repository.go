package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/parking-ledger/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const userColumns = `id, username, email, license_plate, balance, role, created_at`

// UserRepo provides data access to the users table.  The balance column is
// only moved by AddToBalance, which the store calls together with the
// ledger insert.
type UserRepo struct{}

func NewUserRepo() *UserRepo { return &UserRepo{} }

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.LicensePlate, &u.Balance, &u.Role, &u.CreatedAt)
	return u, err
}

// GetByID fetches a user by id, optionally locking the row.
func (r *UserRepo) GetByID(ctx context.Context, q queryer, id uint64, forUpdate bool) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	u, err := scanUser(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("UserRepo.GetByID: %w", translate(err))
	}
	return u, nil
}

// List returns all users ordered by id.
func (r *UserRepo) List(ctx context.Context, q queryer) ([]model.User, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("UserRepo.List: %w", err)
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("UserRepo.List (scanning row): %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("UserRepo.List (rows error): %w", err)
	}
	return users, nil
}

// Create inserts u with a zero balance and sets its ID.
func (r *UserRepo) Create(ctx context.Context, q queryer, u *model.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO users (username, email, license_plate, balance, role, created_at) VALUES (?, ?, ?, 0, ?, ?)`,
		u.Username, u.Email, u.LicensePlate, u.Role, u.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("UserRepo.Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("UserRepo.Create (last insert id): %w", err)
	}
	u.ID = uint64(id)
	u.Balance = 0
	return nil
}

// AddToBalance moves the cached balance by delta and returns the new
// value.  The guard in the WHERE clause keeps the balance from going
// negative even if two replicas race on the same row.
func (r *UserRepo) AddToBalance(ctx context.Context, q queryer, id uint64, delta model.Money) (model.Money, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET balance = balance + ? WHERE id = ? AND balance + ? >= 0`,
		delta, id, delta)
	if err != nil {
		return 0, fmt.Errorf("UserRepo.AddToBalance: %w", translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("UserRepo.AddToBalance (rows affected): %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, q, id, false); err != nil {
			return 0, err
		}
		return 0, ErrInsufficientFunds
	}
	var balance model.Money
	if err := q.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, id).Scan(&balance); err != nil {
		return 0, fmt.Errorf("UserRepo.AddToBalance (read back): %w", err)
	}
	return balance, nil
}
