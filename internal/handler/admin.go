package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-ledger/internal/service"
)

// AdminHandler serves the admin dashboard.  Routes are guarded by
// RequireRole("admin") when authentication is enabled.
type AdminHandler struct {
	Admin *service.Admin
}

func NewAdminHandler(admin *service.Admin) *AdminHandler {
	return &AdminHandler{Admin: admin}
}

// GetAll handles GET /api/admin/get_all.
func (h *AdminHandler) GetAll(c echo.Context) error {
	ov, err := h.Admin.GetAll(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, "", ov)
}

// AdminUnpark handles POST /api/admin/admin_unpark with {user_id}.
func (h *AdminHandler) AdminUnpark(c echo.Context) error {
	var req userRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	res, err := h.Admin.AdminUnpark(c.Request().Context(), uint64(req.UserID))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, res.Message, slotResult{SlotID: res.Slot.ID, Version: res.Slot.Version, Balance: res.Balance})
}

// VerifyLedger handles GET /api/admin/verify_ledger.
func (h *AdminHandler) VerifyLedger(c echo.Context) error {
	bad, err := h.Admin.VerifyLedger(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	msg := "Ledger consistent."
	if len(bad) > 0 {
		msg = "Ledger discrepancies found."
	}
	return ok(c, msg, echo.Map{"consistent": len(bad) == 0, "discrepancies": bad})
}
