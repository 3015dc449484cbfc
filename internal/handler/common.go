// Package handler exposes the engine, snapshot, admin and account
// services over HTTP.  Every handler answers with the JSON envelope the
// mobile and web clients already parse.
package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-ledger/internal/middleware"
	"github.com/iliyamo/parking-ledger/internal/service"
)

// flexID accepts 12, "12" or "" (as zero).  The web client sends ids
// read from localStorage, which are sometimes strings.
type flexID uint64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		b = []byte(s)
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", b)
	}
	*f = flexID(n)
	return nil
}

func (f *flexID) ptr() *uint64 {
	if f == nil {
		return nil
	}
	v := uint64(*f)
	return &v
}

// bind decodes the request into dst and reports malformed input as a
// validation error.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return service.ErrInvalidInput
	}
	return nil
}

// authorize checks that a token-bearing caller acts on its own account.
// Admins may act on anyone.  Without authentication every caller passes.
func authorize(c echo.Context, userID uint64) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok || id.IsAdmin() || id.UserID == userID {
		return nil
	}
	return errForbidden
}
