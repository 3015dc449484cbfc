package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-ledger/internal/middleware"
	"github.com/iliyamo/parking-ledger/internal/service"
)

func TestFlexID(t *testing.T) {
	tests := []struct {
		in      string
		want    flexID
		wantErr bool
	}{
		{`12`, 12, false},
		{`"12"`, 12, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`"abc"`, 0, true},
		{`-1`, 0, true},
		{`1.5`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f flexID
			err := json.Unmarshal([]byte(tt.in), &f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f)
		})
	}

	var absent *flexID
	assert.Nil(t, absent.ptr())
}

func TestFail(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"conflict", service.ErrSlotTaken, http.StatusConflict, "slot_taken", service.ErrSlotTaken.Message},
		{"balance", service.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance", service.ErrInsufficientBalance.Message},
		{"busy", service.ErrBusy, http.StatusServiceUnavailable, "busy", service.ErrBusy.Message},
		{"forbidden", errForbidden, http.StatusForbidden, "forbidden", "You may only act on your own account."},
		{"unclassified", errors.New("dial tcp: refused"), http.StatusInternalServerError, "internal", "Internal error."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
			require.NoError(t, fail(c, tt.err))

			assert.Equal(t, tt.status, rec.Code)
			var body envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, envelope{Status: "error", Message: tt.message, Code: tt.code}, body)
		})
	}
}

func TestFailBusySetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	require.NoError(t, fail(c, service.ErrBusy))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestAuthorize(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	assert.NoError(t, authorize(c, 7), "no identity means authentication is off")

	middleware.SetIdentity(c, middleware.Identity{UserID: 7, Role: "user"})
	assert.NoError(t, authorize(c, 7))
	assert.ErrorIs(t, authorize(c, 8), errForbidden)

	middleware.SetIdentity(c, middleware.Identity{UserID: 1, Role: "admin"})
	assert.NoError(t, authorize(c, 8))
}

func TestDispatcherActions(t *testing.T) {
	noop := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	d := NewDispatcher(map[string]echo.HandlerFunc{"park": noop, "get_user": noop})
	assert.Equal(t, []string{"get_user", "park"}, d.Actions())

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/r-api.php?action=PARK", nil), rec)
	require.NoError(t, d.Handle(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
