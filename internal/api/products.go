package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/iliyamo/storefront-live/internal/model"
)

// ProductInput is the create/update form of a product.
type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Discount    float64 `json:"discount,omitempty"`
	InStock     int     `json:"quantityInStock"`
	ImageURL    string  `json:"image,omitempty"`
}

// LikeResult is the answer to a like toggle.
type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

func productPath(id string) string { return "/products/" + url.PathEscape(id) }

func (c *Client) Products(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	err := c.do(ctx, http.MethodGet, "/products", nil, nil, &out)
	return out, err
}

func (c *Client) Product(ctx context.Context, id string) (model.Product, error) {
	var out model.Product
	err := c.do(ctx, http.MethodGet, productPath(id), nil, nil, &out)
	return out, err
}

func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]model.Product, error) {
	var out []model.Product
	err := c.do(ctx, http.MethodGet, "/products/category/"+url.PathEscape(category), nil, nil, &out)
	return out, err
}

// Discounts lists products with an active discount.
func (c *Client) Discounts(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	err := c.do(ctx, http.MethodGet, "/products/discounts", nil, nil, &out)
	return out, err
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (model.Product, error) {
	var out model.Product
	err := c.do(ctx, http.MethodPost, "/products", nil, in, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id string, in ProductInput) (model.Product, error) {
	var out model.Product
	err := c.do(ctx, http.MethodPut, productPath(id), nil, in, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, productPath(id), nil, nil, nil)
}

// ToggleLike flips the session user's like on a product.
func (c *Client) ToggleLike(ctx context.Context, id string) (LikeResult, error) {
	var out LikeResult
	err := c.do(ctx, http.MethodPost, productPath(id)+"/like", nil, nil, &out)
	return out, err
}
