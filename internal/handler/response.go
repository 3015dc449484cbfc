package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-ledger/internal/service"
)

// envelope is the body of every API response.  Clients only branch on
// Status; Code lets them tell a refresh-worthy conflict from an empty
// wallet.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

// errForbidden is returned when a token's subject acts on another user.
var errForbidden = errors.New("forbidden")

func ok(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusOK, envelope{Status: statusSuccess, Message: message, Data: data})
}

func created(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusCreated, envelope{Status: statusSuccess, Message: message, Data: data})
}

// fail writes err as an error envelope.  Internal errors carry a generic
// message; their cause was logged where they were classified.
func fail(c echo.Context, err error) error {
	if errors.Is(err, errForbidden) {
		return c.JSON(http.StatusForbidden, envelope{Status: statusError, Message: "You may only act on your own account.", Code: "forbidden"})
	}
	e := service.AsError(err)
	status := httpStatus(e.Kind)
	msg := e.Message
	if e.Kind == service.KindInternal {
		msg = service.ErrInternal.Message
	}
	if e.Kind == service.KindUnavailable {
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(status, envelope{Status: statusError, Message: msg, Code: e.Code})
}

func httpStatus(k service.Kind) int {
	switch k {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindInsufficientBalance:
		return http.StatusPaymentRequired
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
