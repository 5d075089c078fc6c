package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/iliyamo/storefront-live/internal/model"
)

// NewMessage is the compose form.
type NewMessage struct {
	To        string `json:"to,omitempty"` // empty broadcasts
	Body      string `json:"message"`
	Warning   bool   `json:"warning,omitempty"`
	Important bool   `json:"important,omitempty"`
	ReplyTo   string `json:"replyTo,omitempty"`
}

// MessagePage is one page of the message list.
type MessagePage struct {
	Messages []model.Message `json:"messages"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	Pages    int             `json:"totalPages"`
}

func (c *Client) SendMessage(ctx context.Context, m NewMessage) (model.Message, error) {
	var out model.Message
	err := c.do(ctx, http.MethodPost, "/messages", nil, m, &out)
	return out, err
}

// Messages fetches page (1-based) of at most limit messages.
func (c *Client) Messages(ctx context.Context, page, limit int) (MessagePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var out MessagePage
	err := c.do(ctx, http.MethodGet, "/messages", q, nil, &out)
	return out, err
}
