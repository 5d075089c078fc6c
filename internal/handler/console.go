package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/storefront-live/internal/api"
	"github.com/iliyamo/storefront-live/internal/live"
	"github.com/iliyamo/storefront-live/internal/notify"
	"github.com/iliyamo/storefront-live/internal/push"
	"github.com/iliyamo/storefront-live/internal/service"
	"github.com/iliyamo/storefront-live/internal/session"
)

// StateSource reports the push connection state and the events listened
// to. *push.Manager implements it.
type StateSource interface {
	State() push.State
	Events() []string
}

// ConsoleHandler serves the live views and mutations of one console session.
type ConsoleHandler struct {
	Session session.Identity
	Push    StateSource

	Orders *live.OrderBoard
	Users  *live.UserTable
	Inbox  *live.Inbox
	Stock  *live.StockBoard

	OrderSvc   *service.OrderService
	UserSvc    *service.UserService
	MessageSvc *service.MessageService
	ProductSvc *service.ProductService

	Notifier *notify.Notifier
	Lookups  LookupAPI
	Catalog  CatalogAPI
	Accounts AccountAPI
}

// fail writes err as {"error": ...} with the status that matches it.
func fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	msg := err.Error()

	var apiErr *api.Error
	switch {
	case errors.Is(err, service.ErrUnknownOrder), errors.Is(err, service.ErrUnknownUser):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrInFlight):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrEmptyMessage):
		status = http.StatusBadRequest
	case errors.As(err, &apiErr):
		// the backend's 401 is about the console's token, not the caller's
		status = http.StatusBadGateway
		if apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusUnauthorized {
			status = apiErr.Status
		}
		msg = apiErr.Message
	}
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// queryInt parses a positive integer query parameter, falling back to def.
func queryInt(c echo.Context, name string, def int) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// State reports the push connection and the session it serves.
func (h *ConsoleHandler) State(c echo.Context) error {
	st, events := push.StateIdle, []string{}
	if h.Push != nil {
		st, events = h.Push.State(), h.Push.Events()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"push":    st.String(),
		"events":  events,
		"session": h.Session,
	})
}
