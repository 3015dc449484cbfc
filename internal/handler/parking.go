package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-ledger/internal/model"
	"github.com/iliyamo/parking-ledger/internal/service"
)

// ParkingHandler serves the user-facing reservation and wallet routes.
type ParkingHandler struct {
	Engine       *service.Engine
	Reader       *service.SnapshotReader
	PollInterval time.Duration
}

func NewParkingHandler(engine *service.Engine, reader *service.SnapshotReader, poll time.Duration) *ParkingHandler {
	if engine == nil || reader == nil {
		panic("nil service passed to NewParkingHandler")
	}
	return &ParkingHandler{Engine: engine, Reader: reader, PollInterval: poll}
}

type slotRequest struct {
	UserID  flexID  `json:"user_id"`
	SlotID  flexID  `json:"sid"`
	Version *flexID `json:"version"`
}

type userRequest struct {
	UserID flexID `json:"user_id"`
	Limit  flexID `json:"limit"`
}

type slotResult struct {
	SlotID  uint64      `json:"sid"`
	Version uint64      `json:"version"`
	Balance model.Money `json:"balance"`
}

// Park handles POST /api/park with {user_id, sid, version?}.
func (h *ParkingHandler) Park(c echo.Context) error {
	var req slotRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	if err := authorize(c, uint64(req.UserID)); err != nil {
		return fail(c, err)
	}
	res, err := h.Engine.Park(c.Request().Context(), service.ParkRequest{
		UserID:          uint64(req.UserID),
		SlotID:          uint64(req.SlotID),
		ExpectedVersion: req.Version.ptr(),
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, res.Message, slotResult{SlotID: res.Slot.ID, Version: res.Slot.Version, Balance: res.Balance})
}

// Unpark handles POST /api/unpark with {user_id, sid, version?}.
func (h *ParkingHandler) Unpark(c echo.Context) error {
	var req slotRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	if err := authorize(c, uint64(req.UserID)); err != nil {
		return fail(c, err)
	}
	res, err := h.Engine.Unpark(c.Request().Context(), service.UnparkRequest{
		UserID:          uint64(req.UserID),
		SlotID:          uint64(req.SlotID),
		ExpectedVersion: req.Version.ptr(),
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, res.Message, slotResult{SlotID: res.Slot.ID, Version: res.Slot.Version, Balance: res.Balance})
}

// Recharge handles POST /api/recharge with {user_id, upi_id, amount}.
func (h *ParkingHandler) Recharge(c echo.Context) error {
	var req struct {
		UserID flexID      `json:"user_id"`
		UPIID  string      `json:"upi_id"`
		Amount model.Money `json:"amount"`
	}
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	if err := authorize(c, uint64(req.UserID)); err != nil {
		return fail(c, err)
	}
	res, err := h.Engine.Recharge(c.Request().Context(), service.RechargeRequest{
		UserID:    uint64(req.UserID),
		Amount:    req.Amount,
		Reference: req.UPIID,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, res.Message, echo.Map{"balance": res.Balance, "transaction_id": res.Transaction.ID})
}

func (h *ParkingHandler) snapshot(c echo.Context) (service.Snapshot, error) {
	var req userRequest
	if err := bind(c, &req); err != nil {
		return service.Snapshot{}, err
	}
	if err := authorize(c, uint64(req.UserID)); err != nil {
		return service.Snapshot{}, err
	}
	return h.Reader.GetSnapshot(c.Request().Context(), uint64(req.UserID))
}

// GetUser handles POST /api/get_user.  data.balance is what the
// dashboard polls.
func (h *ParkingHandler) GetUser(c echo.Context) error {
	snap, err := h.snapshot(c)
	if err != nil {
		return fail(c, err)
	}
	u := snap.User
	return ok(c, "", echo.Map{
		"id":           u.ID,
		"username":     u.Username,
		"email":        u.Email,
		"licence_plat": u.LicensePlate,
		"role":         u.Role,
		"balance":      u.Balance,
		"parked_slot":  snap.ParkedSlot,
	})
}

// GetSlots handles POST /api/get_slots and returns [{sid, uid, username,
// ...}] ordered by slot id.
func (h *ParkingHandler) GetSlots(c echo.Context) error {
	snap, err := h.snapshot(c)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, "", snap.Slots)
}

// Snapshot handles POST /api/snapshot: slots and balance from one read,
// plus the revision a poller can compare against its last view.
func (h *ParkingHandler) Snapshot(c echo.Context) error {
	snap, err := h.snapshot(c)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, "", echo.Map{
		"balance":          snap.User.Balance,
		"parked_slot":      snap.ParkedSlot,
		"slots":            snap.Slots,
		"revision":         snap.Revision,
		"as_of":            snap.AsOf,
		"poll_interval_ms": h.PollInterval.Milliseconds(),
	})
}

type transactionView struct {
	ID           string                `json:"id"`
	Kind         model.TransactionKind `json:"kind"`
	Amount       model.Money           `json:"amount"`
	BalanceAfter model.Money           `json:"balance_after"`
	Reference    string                `json:"reference"`
	CreatedAt    time.Time             `json:"created_at"`
}

// GetTransactions handles POST /api/get_transactions with {user_id,
// limit?}.
func (h *ParkingHandler) GetTransactions(c echo.Context) error {
	var req userRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	if err := authorize(c, uint64(req.UserID)); err != nil {
		return fail(c, err)
	}
	txs, err := h.Reader.Transactions(c.Request().Context(), uint64(req.UserID), int(req.Limit))
	if err != nil {
		return fail(c, err)
	}
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionView{
			ID:           t.ID,
			Kind:         t.Kind,
			Amount:       t.Amount,
			BalanceAfter: t.BalanceAfter,
			Reference:    t.Reference,
			CreatedAt:    t.CreatedAt,
		})
	}
	return ok(c, "", out)
}
