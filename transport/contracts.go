package transport

import (
	"context"
	"time"
)

type Request struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// Adapter executes a single HTTP exchange. Non-2xx responses are returned
// as responses, not errors.
type Adapter interface {
	Do(ctx context.Context, req Request) (Response, error)
}
