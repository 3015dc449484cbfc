package handler

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// Dispatcher serves the single-endpoint API of the original web client:
// POST /r-api.php?action=<name> with the same JSON body the dedicated
// route takes.
type Dispatcher struct {
	actions map[string]echo.HandlerFunc
}

// NewDispatcher maps action names to handlers.  Callers wrap privileged
// actions with their middleware before passing them in.
func NewDispatcher(actions map[string]echo.HandlerFunc) *Dispatcher {
	return &Dispatcher{actions: actions}
}

// Actions lists the registered action names.
func (d *Dispatcher) Actions() []string {
	names := make([]string, 0, len(d.actions))
	for name := range d.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) Handle(c echo.Context) error {
	action := strings.ToLower(strings.TrimSpace(c.QueryParam("action")))
	h, found := d.actions[action]
	if !found {
		return c.JSON(http.StatusBadRequest, envelope{Status: statusError, Message: "Unknown action.", Code: "unknown_action"})
	}
	return h(c)
}
