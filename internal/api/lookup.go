package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

func (c *Client) Cities(ctx context.Context) ([]string, error) {
	return c.lookup(ctx, "/lookup/cities")
}

func (c *Client) Streets(ctx context.Context, city string) ([]string, error) {
	return c.lookup(ctx, "/lookup/cities/"+url.PathEscape(city)+"/streets")
}

// lookup serves read-only reference lists, through the lookup cache when
// one is configured.
func (c *Client) lookup(ctx context.Context, path string) ([]string, error) {
	var key string
	if c.lookups != nil {
		key = c.lookups.Key(path)
		if raw, ok := c.lookups.Get(ctx, key); ok {
			var out []string
			if err := json.Unmarshal(raw, &out); err == nil {
				return out, nil
			}
		}
	}
	raw, err := c.doRaw(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrapf(err, "GET %s: decode", path)
	}
	if c.lookups != nil && key != "" {
		c.lookups.Set(ctx, key, raw)
	}
	return out, nil
}
