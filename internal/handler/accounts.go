package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-ledger/internal/model"
	"github.com/iliyamo/parking-ledger/internal/service"
)

// AccountHandler serves sign-up.
type AccountHandler struct {
	Accounts *service.Accounts
}

func NewAccountHandler(accounts *service.Accounts) *AccountHandler {
	return &AccountHandler{Accounts: accounts}
}

// userView is the public shape of a user record.
type userView struct {
	ID           uint64      `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	LicensePlate string      `json:"licence_plat"`
	Role         model.Role  `json:"role"`
	Balance      model.Money `json:"balance"`
}

// Register handles POST /api/register with {username, email,
// licence_plat}.  license_plate is accepted as an alias.
func (h *AccountHandler) Register(c echo.Context) error {
	var req struct {
		Username     string `json:"username"`
		Email        string `json:"email"`
		LicencePlat  string `json:"licence_plat"`
		LicensePlate string `json:"license_plate"`
	}
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	plate := req.LicencePlat
	if plate == "" {
		plate = req.LicensePlate
	}
	u, err := h.Accounts.Register(c.Request().Context(), service.RegisterRequest{
		Username:     req.Username,
		Email:        req.Email,
		LicensePlate: plate,
	})
	if err != nil {
		return fail(c, err)
	}
	return created(c, "Registration successful.", userView{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		LicensePlate: u.LicensePlate,
		Role:         u.Role,
		Balance:      u.Balance,
	})
}
