package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// LookupAPI serves reference lists. *api.Client implements it.
type LookupAPI interface {
	Cities(ctx context.Context) ([]string, error)
	Streets(ctx context.Context, city string) ([]string, error)
}

func (h *ConsoleHandler) Cities(c echo.Context) error {
	out, err := h.Lookups.Cities(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ConsoleHandler) Streets(c echo.Context) error {
	out, err := h.Lookups.Streets(c.Request().Context(), c.Param("city"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
