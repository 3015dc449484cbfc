package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-ledger/internal/handler"
)

// registerAdmin registers the admin dashboard routes.  The aggregate is
// served through the response cache, which every successful write
// invalidates; the ledger check and the forced release never are.
func registerAdmin(e *echo.Echo, h *handler.AdminHandler, m chains) {
	g := e.Group("/api/admin", m.admin...)
	g.GET("/get_all", h.GetAll, m.cache)
	g.GET("/verify_ledger", h.VerifyLedger)
	g.POST("/admin_unpark", h.AdminUnpark, m.write...)
}

// registerLegacy maps the PHP-era endpoints onto the same handlers.
// /r-api.php and /park_api.php dispatch on ?action=; register keeps its
// own script.
func registerLegacy(e *echo.Echo, p *handler.ParkingHandler, a *handler.AccountHandler, h *handler.AdminHandler, m chains) {
	user := func(fn echo.HandlerFunc, mws ...echo.MiddlewareFunc) echo.HandlerFunc {
		return wrap(fn, join(m.auth, mws)...)
	}
	admin := func(fn echo.HandlerFunc, mws ...echo.MiddlewareFunc) echo.HandlerFunc {
		return wrap(fn, join(m.admin, mws)...)
	}

	d := handler.NewDispatcher(map[string]echo.HandlerFunc{
		"park":             user(p.Park, m.write...),
		"unpark":           user(p.Unpark, m.write...),
		"recharge":         user(p.Recharge, m.write...),
		"get_user":         user(p.GetUser),
		"get_slots":        user(p.GetSlots),
		"snapshot":         user(p.Snapshot),
		"get_transactions": user(p.GetTransactions),
		"register":         wrap(a.Register, m.write...),
		"get_all":          admin(h.GetAll),
		"admin_unpark":     admin(h.AdminUnpark, m.write...),
		"verify_ledger":    admin(h.VerifyLedger),
	})
	for _, path := range []string{"/r-api.php", "/park_api.php"} {
		e.POST(path, d.Handle)
		e.GET(path, d.Handle)
	}
	e.POST("/register_api.php", a.Register, m.write...)
}
