// Package transport provides the HTTP plumbing shared by the catalog
// accessor and the source readers: JSON request helpers, bearer
// authentication with token caching, and uniform error translation.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opendatabs/metasync/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = 60 * time.Second

// Client provides JSON-over-HTTP functionality against one base URL with
// authentication applied to every request.
type Client struct {
	http    *http.Client
	base    string
	auth    Authenticator
	headers map[string]string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(name, value string) ClientOption {
	return func(c *Client) {
		c.headers[name] = value
	}
}

// New creates a transport client for a base URL with the specified
// authenticator.
func New(base string, auth Authenticator, opts ...ClientOption) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	c := &Client{
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
		base:    strings.TrimRight(base, "/"),
		auth:    auth,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL joins a path onto the client's base URL.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.base + "/" + strings.TrimLeft(path, "/")
}

// JSON performs one JSON request. A non-nil body is marshaled into the
// request; a non-nil out receives the decoded response body. Returns
// ErrNotFound for 404 and 410 responses and a RemoteError carrying the
// status code for every other non-2xx response. A 401 invalidates a
// cached credential and retries the request once with a fresh one.
func (c *Client) JSON(ctx context.Context, method, path string, body, out any) error {
	var encoded []byte
	if body != nil {
		var err error
		if encoded, err = json.Marshal(body); err != nil {
			return errors.WrapParse("json", path, err)
		}
	}

	resp, err := c.do(ctx, method, path, encoded)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		if inv, ok := c.auth.(interface{ Invalidate() }); ok {
			resp.Body.Close()
			inv.Invalidate()
			if resp, err = c.do(ctx, method, path, encoded); err != nil {
				return err
			}
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return errors.NewNotFoundError("resource", method+" "+path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.NewRemoteError(method, path, resp.StatusCode,
			fmt.Errorf("%s", readErrorBody(resp.Body)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapParse("json", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, encoded []byte) (*http.Response, error) {
	var reader io.Reader
	if encoded != nil {
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return nil, errors.WrapRemote(method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if encoded != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}
	if err := c.auth.Apply(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapRemote(method, path, err)
	}
	return resp, nil
}

// Get performs a GET request decoding the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.JSON(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, http.MethodPost, path, body, out)
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, http.MethodPut, path, body, out)
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, http.MethodPatch, path, body, out)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.JSON(ctx, http.MethodDelete, path, nil, nil)
}

// error bodies are logged, not parsed; cap what we read
const maxErrorBody = 4 << 10

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return "request failed"
	}
	return msg
}
