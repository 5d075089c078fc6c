package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-live/internal/api"
	"github.com/iliyamo/storefront-live/internal/model"
)

// AccountAPI manages accounts on the backend. *api.Client implements it.
type AccountAPI interface {
	Register(ctx context.Context, r api.Registration) (model.User, error)
	SetStatus(ctx context.Context, userID string, active bool) (model.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// CreateUser registers an account on behalf of someone else.
func (h *ConsoleHandler) CreateUser(c echo.Context) error {
	var in api.Registration
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return badRequest(c, "name, email and password are required")
	}
	u, err := h.Accounts.Register(c.Request().Context(), in)
	if err != nil {
		return fail(c, err)
	}
	h.Users.Store.Merge(u)
	return c.JSON(http.StatusCreated, u)
}

type statusBody struct {
	Active *bool `json:"active"`
}

// ChangeUserStatus blocks or re-enables an account.
func (h *ConsoleHandler) ChangeUserStatus(c echo.Context) error {
	var req statusBody
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return badRequest(c, "active must be true or false")
	}
	u, err := h.Accounts.SetStatus(c.Request().Context(), c.Param("id"), *req.Active)
	if err != nil {
		return fail(c, err)
	}
	h.Users.Store.Merge(u)
	return c.JSON(http.StatusOK, u)
}

func (h *ConsoleHandler) DeleteUser(c echo.Context) error {
	id := c.Param("id")
	if id == h.Session.UserID {
		return badRequest(c, "cannot delete the session user")
	}
	if err := h.Accounts.DeleteUser(c.Request().Context(), id); err != nil {
		return fail(c, err)
	}
	h.Users.Store.Remove(id)
	return c.NoContent(http.StatusNoContent)
}
