package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/iliyamo/storefront-live/internal/model"
)

// Registration is the sign-up form.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	City     string `json:"city,omitempty"`
	Street   string `json:"street,omitempty"`
}

// LoginResult is the backend's answer to a login.
type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (c *Client) Register(ctx context.Context, r Registration) (model.User, error) {
	var out model.User
	err := c.do(ctx, http.MethodPost, "/users/register", nil, r, &out)
	return out, err
}

// Login exchanges credentials for a token. Storing the token is the caller's
// job (see session.StoredToken.Set).
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	in := map[string]string{"email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/users/login", nil, in, &out)
	return out, err
}

func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var out []model.User
	err := c.do(ctx, http.MethodGet, "/users", nil, nil, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context) (model.User, error) {
	var out model.User
	err := c.do(ctx, http.MethodGet, "/users/profile", nil, nil, &out)
	return out, err
}

// SetRole changes a user's role and returns the updated record.
func (c *Client) SetRole(ctx context.Context, userID string, role model.Role) (model.User, error) {
	var out model.User
	in := map[string]string{"role": string(role)}
	err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(userID)+"/role", nil, in, &out)
	return out, err
}

// SetStatus enables or blocks an account.
func (c *Client) SetStatus(ctx context.Context, userID string, active bool) (model.User, error) {
	var out model.User
	in := map[string]bool{"active": active}
	err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(userID)+"/status", nil, in, &out)
	return out, err
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID), nil, nil, nil)
}
