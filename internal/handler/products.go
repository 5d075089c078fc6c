package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListStock returns the stock board. ?below=N keeps products with fewer
// than N items in stock.
func (h *ConsoleHandler) ListStock(c echo.Context) error {
	products := h.Stock.Products()
	if c.QueryParam("below") != "" {
		below, ok := queryInt(c, "below", 0)
		if !ok {
			return badRequest(c, "invalid below")
		}
		kept := products[:0]
		for _, p := range products {
			if p.InStock < below {
				kept = append(kept, p)
			}
		}
		products = kept
	}
	return c.JSON(http.StatusOK, products)
}

func (h *ConsoleHandler) ToggleLike(c echo.Context) error {
	res, err := h.ProductSvc.ToggleLike(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
