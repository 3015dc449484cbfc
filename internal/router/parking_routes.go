package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-ledger/internal/handler"
)

// registerParking registers the user-facing routes under /api.  Mutating
// routes pass through the rate limiter after authentication so the
// bucket is keyed by the verified user.
func registerParking(e *echo.Echo, p *handler.ParkingHandler, a *handler.AccountHandler, m chains) {
	e.POST("/api/register", a.Register, m.write...)

	g := e.Group("/api", m.auth...)
	g.POST("/park", p.Park, m.write...)
	g.POST("/unpark", p.Unpark, m.write...)
	g.POST("/recharge", p.Recharge, m.write...)

	g.POST("/get_user", p.GetUser)
	g.POST("/get_slots", p.GetSlots)
	g.POST("/snapshot", p.Snapshot)
	g.POST("/get_transactions", p.GetTransactions)
}
