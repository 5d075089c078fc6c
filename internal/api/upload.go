package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/pkg/errors"
)

// Upload is the image host's answer.
type Upload struct {
	URL      string `json:"secure_url"`
	PublicID string `json:"public_id"`
}

// UploadImage posts r as a multipart "file" field to the image host with the
// configured upload preset.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (Upload, error) {
	if c.imageURL == "" {
		return Upload{}, errors.New("api: image upload url not configured")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if c.imagePreset != "" {
		if err := mw.WriteField("upload_preset", c.imagePreset); err != nil {
			return Upload{}, errors.Wrap(err, "upload: preset field")
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Upload{}, errors.Wrap(err, "upload: file field")
	}
	if _, err := io.Copy(fw, r); err != nil {
		return Upload{}, errors.Wrap(err, "upload: copy")
	}
	if err := mw.Close(); err != nil {
		return Upload{}, errors.Wrap(err, "upload: close form")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.imageURL, &buf)
	if err != nil {
		return Upload{}, errors.Wrap(err, "upload")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	raw, err := c.sendAnonymous(req)
	if err != nil {
		return Upload{}, err
	}
	var out Upload
	if err := json.Unmarshal(raw, &out); err != nil {
		return Upload{}, errors.Wrap(err, "upload: decode")
	}
	return out, nil
}

// sendAnonymous sends req without the backend token; the image host has
// its own credentials.
func (c *Client) sendAnonymous(req *http.Request) ([]byte, error) {
	anon := *c
	anon.tokens = nil
	return anon.send(req)
}
