package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/service"
)

// ListOrders returns the live order board, newest first. ?status= filters.
func (h *ConsoleHandler) ListOrders(c echo.Context) error {
	orders := h.Orders.Orders()
	if raw := c.QueryParam("status"); raw != "" {
		st, err := model.ParseOrderStatus(raw)
		if err != nil {
			return badRequest(c, err.Error())
		}
		kept := orders[:0]
		for _, o := range orders {
			if o.Status == st {
				kept = append(kept, o)
			}
		}
		orders = kept
	}
	return c.JSON(http.StatusOK, orders)
}

// GetOrder accepts the server id or the order number.
func (h *ConsoleHandler) GetOrder(c echo.Context) error {
	o, ok := h.Orders.Lookup(c.Param("id"))
	if !ok {
		return fail(c, service.ErrUnknownOrder)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *ConsoleHandler) OrderTransitions(c echo.Context) error {
	next, err := h.OrderSvc.Transitions(c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"next": next})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *ConsoleHandler) ChangeOrderStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	to, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		return badRequest(c, err.Error())
	}
	o, err := h.OrderSvc.ChangeStatus(c.Request().Context(), c.Param("id"), to)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, o)
}
