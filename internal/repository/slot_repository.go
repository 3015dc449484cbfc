package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/parking-ledger/internal/model"
)

const slotColumns = `id, occupant_user_id, occupied_since, version, updated_at`

// SlotRepo provides data access to the slots table.  Occupancy changes go
// through CompareAndSwap only.
type SlotRepo struct{}

func NewSlotRepo() *SlotRepo { return &SlotRepo{} }

func scanSlot(row interface{ Scan(...any) error }, extra ...any) (model.Slot, error) {
	var (
		s        model.Slot
		occupant sql.NullInt64
		since    sql.NullTime
	)
	dest := append([]any{&s.ID, &occupant, &since, &s.Version, &s.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Slot{}, err
	}
	if occupant.Valid {
		id := uint64(occupant.Int64)
		s.OccupantUserID = &id
	}
	if since.Valid {
		ts := since.Time
		s.OccupiedSince = &ts
	}
	return s, nil
}

func (r *SlotRepo) getOne(ctx context.Context, q queryer, op, where string, arg any, forUpdate bool) (model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE ` + where
	if forUpdate {
		query += ` FOR UPDATE`
	}
	s, err := scanSlot(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Slot{}, ErrNotFound
	}
	if err != nil {
		return model.Slot{}, fmt.Errorf("SlotRepo.%s: %w", op, translate(err))
	}
	return s, nil
}

// GetByID fetches a slot by id, optionally locking the row.
func (r *SlotRepo) GetByID(ctx context.Context, q queryer, id uint64, forUpdate bool) (model.Slot, error) {
	return r.getOne(ctx, q, "GetByID", `id = ?`, id, forUpdate)
}

// GetByOccupant fetches the slot held by userID.
func (r *SlotRepo) GetByOccupant(ctx context.Context, q queryer, userID uint64) (model.Slot, error) {
	return r.getOne(ctx, q, "GetByOccupant", `occupant_user_id = ?`, userID, false)
}

// ListOccupancy returns every slot with the occupant's username.
func (r *SlotRepo) ListOccupancy(ctx context.Context, q queryer) ([]model.SlotOccupancy, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT s.id, s.occupant_user_id, s.occupied_since, s.version, s.updated_at, COALESCE(u.username, '')
		FROM slots s
		LEFT JOIN users u ON u.id = s.occupant_user_id
		ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("SlotRepo.ListOccupancy: %w", err)
	}
	defer rows.Close()
	var out []model.SlotOccupancy
	for rows.Next() {
		var username string
		s, err := scanSlot(rows, &username)
		if err != nil {
			return nil, fmt.Errorf("SlotRepo.ListOccupancy (scanning row): %w", err)
		}
		out = append(out, model.SlotOccupancy{Slot: s, Username: username})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SlotRepo.ListOccupancy (rows error): %w", err)
	}
	return out, nil
}

// CompareAndSwap writes the occupant of slot id if its version is still
// expectedVersion.  The unique index on occupant_user_id turns a second
// slot for the same user into ErrOccupantExists.
func (r *SlotRepo) CompareAndSwap(ctx context.Context, q queryer, id, expectedVersion uint64, occupant *uint64, since *time.Time, now time.Time) (model.Slot, error) {
	var (
		occArg   any
		sinceArg any
	)
	if occupant != nil {
		occArg = *occupant
		if since != nil {
			sinceArg = since.UTC()
		}
	}
	res, err := q.ExecContext(ctx,
		`UPDATE slots SET occupant_user_id = ?, occupied_since = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		occArg, sinceArg, now, id, expectedVersion)
	if err != nil {
		if isDuplicate(err) {
			return model.Slot{}, ErrOccupantExists
		}
		return model.Slot{}, fmt.Errorf("SlotRepo.CompareAndSwap: %w", translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Slot{}, fmt.Errorf("SlotRepo.CompareAndSwap (rows affected): %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, q, id, false); err != nil {
			return model.Slot{}, err
		}
		return model.Slot{}, ErrVersionConflict
	}

	s := model.Slot{ID: id, Version: expectedVersion + 1, UpdatedAt: now}
	if occupant != nil {
		s.OccupantUserID = cloneID(occupant)
		if since != nil {
			ts := since.UTC()
			s.OccupiedSince = &ts
		}
	}
	return s, nil
}

// ensureBatch keeps each INSERT far below MySQL's 65,535 placeholder
// limit (two per row).
const ensureBatch = 1000

// Ensure inserts the missing slots among ids 1..n and reports how many
// were created.  Rows go in batches of ensureBatch.
func (r *SlotRepo) Ensure(ctx context.Context, q queryer, n int, now time.Time) (int, error) {
	created := 0
	for first := 1; first <= n; first += ensureBatch {
		last := min(first+ensureBatch-1, n)
		var (
			sb   strings.Builder
			args = make([]any, 0, (last-first+1)*2)
		)
		sb.WriteString(`INSERT IGNORE INTO slots (id, version, updated_at) VALUES `)
		for id := first; id <= last; id++ {
			if id > first {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, 0, ?)")
			args = append(args, uint64(id), now)
		}
		res, err := q.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return created, fmt.Errorf("SlotRepo.Ensure (ids %d-%d): %w", first, last, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("SlotRepo.Ensure (rows affected): %w", err)
		}
		created += int(affected)
	}
	return created, nil
}
