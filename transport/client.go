package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Client issues JSON requests relative to a base URL and turns non-2xx
// responses into errors.
type Client struct {
	BaseURL              string
	Headers              map[string]string
	Adapter              Adapter
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	Throttle             Throttle
}

type ClientOption func(*Client)

func WithHeader(key string, value string) ClientOption {
	return func(c *Client) {
		if c.Headers == nil {
			c.Headers = map[string]string{}
		}
		c.Headers[key] = value
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.Timeout = timeout
	}
}

func WithMaxResponseBodyBytes(limit int64) ClientOption {
	return func(c *Client) {
		c.MaxResponseBodyBytes = limit
	}
}

func NewClient(baseURL string, adapter Adapter, opts ...ClientOption) *Client {
	if adapter == nil {
		adapter = NewRESTAdapter(nil)
	}
	client := &Client{
		BaseURL: strings.TrimSpace(baseURL),
		Headers: map[string]string{},
		Adapter: adapter,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

func (c *Client) Get(ctx context.Context, path string) (Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, nil)
}

// GetJSON fetches path and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	res, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	return DecodeJSON(res, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, payload any, headers map[string]string) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, transportWrapError(
			err,
			goerrors.CategoryInternal,
			"transport: encode request payload",
			http.StatusInternalServerError,
			map[string]any{"path": path},
		)
	}
	return c.Do(ctx, http.MethodPost, path, body, headers)
}

func (c *Client) Do(ctx context.Context, method string, path string, body []byte, headers map[string]string) (Response, error) {
	if c == nil || c.Adapter == nil {
		return Response{}, transportError(
			"transport: client is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	target, err := c.resolve(path)
	if err != nil {
		return Response{}, err
	}
	merged := make(map[string]string, len(c.Headers)+len(headers))
	for key, value := range c.Headers {
		merged[key] = value
	}
	for key, value := range headers {
		merged[key] = value
	}
	if c.Throttle != nil {
		if err := c.Throttle.BeforeCall(ctx); err != nil {
			return Response{}, err
		}
	}
	res, err := c.Adapter.Do(ctx, Request{
		Method:               method,
		URL:                  target,
		Headers:              merged,
		Body:                 body,
		Timeout:              c.Timeout,
		MaxResponseBodyBytes: c.MaxResponseBodyBytes,
	})
	if err != nil {
		return Response{}, err
	}
	if c.Throttle != nil {
		if err := c.Throttle.AfterCall(ctx, res); err != nil {
			return res, err
		}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return res, StatusError(method, path, res)
	}
	return res, nil
}

func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return "", transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid request path",
			http.StatusBadRequest,
			map[string]any{"path": path},
		)
	}
	if ref.IsAbs() || c.BaseURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid base url",
			http.StatusBadRequest,
			map[string]any{"base_url": c.BaseURL},
		)
	}
	return base.ResolveReference(ref).String(), nil
}

// DecodeJSON decodes a response body. An empty body leaves out untouched.
func DecodeJSON(res Response, out any) error {
	if out == nil || len(strings.TrimSpace(string(res.Body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode response body",
			http.StatusBadGateway,
			map[string]any{"status_code": res.StatusCode, "response": truncate(string(res.Body))},
		)
	}
	return nil
}

func truncate(body string) string {
	if len(body) > maxErrorBodyBytes {
		return body[:maxErrorBodyBytes]
	}
	return body
}
