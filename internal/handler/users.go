package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-live/internal/model"
)

// ListUsers returns the user table. ?online=true|false filters by presence.
func (h *ConsoleHandler) ListUsers(c echo.Context) error {
	users := h.Users.Users()
	if raw := c.QueryParam("online"); raw != "" {
		want, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "online must be true or false")
		}
		kept := users[:0]
		for _, u := range users {
			if u.Online == want {
				kept = append(kept, u)
			}
		}
		users = kept
	}
	return c.JSON(http.StatusOK, users)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *ConsoleHandler) ChangeUserRole(c echo.Context) error {
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.UserSvc.ChangeRole(c.Request().Context(), c.Param("id"), model.Role(req.Role))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
