package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/iliyamo/storefront-live/internal/model"
)

func (c *Client) Orders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	err := c.do(ctx, http.MethodGet, "/orders", nil, nil, &out)
	return out, err
}

func (c *Client) Order(ctx context.Context, id string) (model.Order, error) {
	var out model.Order
	err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) OrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	var out []model.Order
	err := c.do(ctx, http.MethodGet, "/orders/user/"+url.PathEscape(userID), nil, nil, &out)
	return out, err
}

// SetOrderStatus patches the status and returns the server's copy.
func (c *Client) SetOrderStatus(ctx context.Context, id string, st model.OrderStatus) (model.Order, error) {
	var out model.Order
	in := map[string]string{"status": string(st)}
	err := c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id)+"/status", nil, in, &out)
	return out, err
}
