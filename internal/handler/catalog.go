package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-live/internal/api"
	"github.com/iliyamo/storefront-live/internal/model"
)

// CatalogAPI is the product side of the backend. *api.Client implements it.
type CatalogAPI interface {
	Products(ctx context.Context) ([]model.Product, error)
	ProductsByCategory(ctx context.Context, category string) ([]model.Product, error)
	Discounts(ctx context.Context) ([]model.Product, error)
	CreateProduct(ctx context.Context, in api.ProductInput) (model.Product, error)
	UpdateProduct(ctx context.Context, id string, in api.ProductInput) (model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// ListProducts fetches the catalog (one ?category= when given) and folds it
// into the stock board.
func (h *ConsoleHandler) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		list []model.Product
		err  error
	)
	if cat := strings.TrimSpace(c.QueryParam("category")); cat != "" {
		list, err = h.Catalog.ProductsByCategory(ctx, cat)
	} else {
		list, err = h.Catalog.Products(ctx)
	}
	if err != nil {
		return fail(c, err)
	}
	h.Stock.Store.MergeAll(list)
	return c.JSON(http.StatusOK, list)
}

type discounted struct {
	model.Product
	FinalPrice float64 `json:"finalPrice"`
}

func (h *ConsoleHandler) ListDiscounts(c echo.Context) error {
	list, err := h.Catalog.Discounts(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	out := make([]discounted, 0, len(list))
	for _, p := range list {
		out = append(out, discounted{Product: p, FinalPrice: p.FinalPrice()})
	}
	return c.JSON(http.StatusOK, out)
}

func bindProduct(c echo.Context) (api.ProductInput, string) {
	var in api.ProductInput
	if err := c.Bind(&in); err != nil {
		return in, "invalid body"
	}
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return in, "name is required"
	case in.Price < 0:
		return in, "price must not be negative"
	case in.InStock < 0:
		return in, "quantityInStock must not be negative"
	case in.Discount < 0 || in.Discount >= 100:
		return in, "discount must be a percentage below 100"
	}
	return in, ""
}

func (h *ConsoleHandler) CreateProduct(c echo.Context) error {
	in, msg := bindProduct(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	p, err := h.Catalog.CreateProduct(c.Request().Context(), in)
	if err != nil {
		return fail(c, err)
	}
	h.Stock.Store.Merge(p)
	return c.JSON(http.StatusCreated, p)
}

func (h *ConsoleHandler) UpdateProduct(c echo.Context) error {
	in, msg := bindProduct(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	p, err := h.Catalog.UpdateProduct(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return fail(c, err)
	}
	h.Stock.Store.Merge(p)
	return c.JSON(http.StatusOK, p)
}

func (h *ConsoleHandler) DeleteProduct(c echo.Context) error {
	id := c.Param("id")
	if err := h.Catalog.DeleteProduct(c.Request().Context(), id); err != nil {
		return fail(c, err)
	}
	h.Stock.Store.Remove(id)
	return c.NoContent(http.StatusNoContent)
}
