package router // package router wires handlers and middleware onto Echo

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/parking-ledger/internal/config"
	"github.com/iliyamo/parking-ledger/internal/handler"
	"github.com/iliyamo/parking-ledger/internal/middleware"
	"github.com/iliyamo/parking-ledger/internal/service"
)

// Deps is everything the routes need.  Redis may be nil, in which case
// rate limiting and the admin cache are off.  An empty JWTSecret turns
// token checks off for user routes (config only allows that in dev);
// admin routes then reject every request.
type Deps struct {
	Engine   *service.Engine
	Reader   *service.SnapshotReader
	Admin    *service.Admin
	Accounts *service.Accounts

	JWTSecret    string
	PollInterval time.Duration

	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig

	Log  zerolog.Logger
	Ping handler.Pinger
}

// RegisterRoutes registers the health check, the JSON API under /api and
// the legacy single-endpoint scripts the first web client calls.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.Ping))

	parking := handler.NewParkingHandler(d.Engine, d.Reader, d.PollInterval)
	accounts := handler.NewAccountHandler(d.Accounts)
	admin := handler.NewAdminHandler(d.Admin)

	m := newChains(d)
	registerParking(e, parking, accounts, m)
	registerAdmin(e, admin, m)
	registerLegacy(e, parking, accounts, admin, m)
}

// chains holds the middleware stacks shared by the modern and legacy
// routes.
type chains struct {
	auth  []echo.MiddlewareFunc // token check (empty when disabled)
	admin []echo.MiddlewareFunc // token check + admin role; never empty
	write []echo.MiddlewareFunc // rate limit + cache invalidation
	cache echo.MiddlewareFunc
}

func newChains(d Deps) chains {
	rc := middleware.NewResponseCache(d.Cache, d.Redis, d.Log)
	c := chains{
		admin: []echo.MiddlewareFunc{middleware.RequireRole("admin")},
		write: []echo.MiddlewareFunc{middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log), rc.Invalidate()},
		cache: rc.Serve(),
	}
	if d.JWTSecret != "" {
		jwt := middleware.JWTAuth(d.JWTSecret)
		c.auth = []echo.MiddlewareFunc{jwt}
		c.admin = []echo.MiddlewareFunc{jwt, middleware.RequireRole("admin")}
	}
	return c
}

// wrap applies mws to h so the first middleware runs first.
func wrap(h echo.HandlerFunc, mws ...echo.MiddlewareFunc) echo.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// join concatenates middleware stacks into a fresh slice.
func join(stacks ...[]echo.MiddlewareFunc) []echo.MiddlewareFunc {
	var out []echo.MiddlewareFunc
	for _, s := range stacks {
		out = append(out, s...)
	}
	return out
}
