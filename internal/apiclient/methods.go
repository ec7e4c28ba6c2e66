package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// Get fetches path and decodes the payload into out, which may be nil.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	req := NewRequest(http.MethodGet, path)
	req.Query = query
	return c.call(ctx, req, out)
}

// Post sends body as JSON and decodes the payload into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the payload into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPut, path, body, out)
}

// Patch sends body as JSON and decodes the payload into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPatch, path, body, out)
}

// Delete deletes path and decodes the payload into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, NewRequest(http.MethodDelete, path), out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := NewJSONRequest(method, path, body)
	if err != nil {
		return err
	}
	return c.call(ctx, req, out)
}

func (c *Client) call(ctx context.Context, req *Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}
