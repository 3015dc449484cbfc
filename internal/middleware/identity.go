package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// Identity is the authenticated caller as asserted by a verified token.
type Identity struct {
	UserID uint64
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool { return i.Role == "admin" }

// SetIdentity stores id on the request context.
func SetIdentity(c echo.Context, id Identity) { c.Set(identityKey, id) }

// IdentityFrom returns the caller set by JWTAuth.  ok is false when the
// request carried no token or authentication is disabled.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

// userKey names the caller for rate limiting; unauthenticated requests
// share the "anon" bucket of their IP.
func userKey(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok && id.UserID != 0 {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "anon"
}
