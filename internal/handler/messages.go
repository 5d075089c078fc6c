package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-live/internal/api"
)

// ListMessages pages through the inbox, newest first.
func (h *ConsoleHandler) ListMessages(c echo.Context) error {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok || limit > 100 {
		return badRequest(c, "invalid limit")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"messages": h.Inbox.Page(page, limit),
		"page":     page,
		"total":    len(h.Inbox.Messages()),
	})
}

func (h *ConsoleHandler) SendMessage(c echo.Context) error {
	var req api.NewMessage
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	m, err := h.MessageSvc.Send(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}
