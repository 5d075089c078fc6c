// Package api is the console's client for the marketplace REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/logger"
	"github.com/iliyamo/storefront-live/internal/session"
)

// Error is a non-2xx answer from the backend.
type Error struct {
	Status    int
	Message   string
	RequestID string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool { return statusOf(err) == http.StatusUnauthorized }

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

func statusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// LookupCache stores raw lookup responses. *cache.Lookup implements it.
type LookupCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
	Key(parts ...string) string
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Tokens      session.TokenSource
	HTTPClient  *http.Client
	Lookups     LookupCache
	ImageURL    string
	ImagePreset string
	Timeout     time.Duration // per call, default 15s
}

// Client calls the backend with the session's bearer token. Every request
// carries a fresh X-Request-ID.
type Client struct {
	base        *url.URL
	hc          *http.Client
	tokens      session.TokenSource
	lookups     LookupCache
	imageURL    string
	imagePreset string
	timeout     time.Duration
	log         *zap.Logger
}

func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("api: invalid base url %q", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:        u,
		hc:          hc,
		tokens:      opts.Tokens,
		lookups:     opts.Lookups,
		imageURL:    opts.ImageURL,
		imagePreset: opts.ImagePreset,
		timeout:     timeout,
		log:         logger.Named("api"),
	}, nil
}

// endpoint joins the base url with path, whose segments are already escaped.
func (c *Client) endpoint(path string, q url.Values) string {
	s := c.base.String() + path
	if len(q) > 0 {
		s += "?" + q.Encode()
	}
	return s
}

// do sends a JSON request and decodes a JSON answer into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out interface{}) error {
	raw, err := c.doRaw(ctx, method, path, q, in)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(raw, out), "%s %s: decode", method, path)
}

func (c *Client) doRaw(ctx context.Context, method, path string, q url.Values, in interface{}) ([]byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s: encode", method, path)
		}
		body = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	rid := uuid.NewString()
	req.Header.Set("X-Request-ID", rid)
	if c.tokens != nil {
		tok, err := c.tokens.Token(req.Context())
		if err != nil && !errors.Is(err, session.ErrNoToken) {
			return nil, errors.Wrap(err, "token")
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s: read body", req.Method, req.URL.Path)
	}
	c.log.Debug("call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
		zap.String("request_id", rid),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Message: errorMessage(raw), RequestID: rid}
	}
	return raw, nil
}

// errorMessage pulls {"message"} or {"error"} out of an error body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
