package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Notifications lists the recent toasts, newest first.
func (h *ConsoleHandler) Notifications(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Notifier.History())
}
