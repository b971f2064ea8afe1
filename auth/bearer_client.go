package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/transport"
)

type BearerClientConfig struct {
	BaseURL string
	Headers map[string]string
	// ProbePath is requested once when the client is first built. An
	// unauthorized probe forces one token refresh.
	ProbePath            string
	Tokens               core.TokenSource
	Adapter              transport.Adapter
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	Throttle             transport.Throttle
}

// BearerClient lazily builds a transport client carrying a bearer token and
// keeps it for the lifetime of the connector configuration.
type BearerClient struct {
	config BearerClientConfig
	mu     sync.Mutex
	client *transport.Client
}

func NewBearerClient(cfg BearerClientConfig) (*BearerClient, error) {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.ProbePath = strings.TrimSpace(cfg.ProbePath)
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("auth: bearer client base url is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("auth: bearer client token source is required")
	}
	if cfg.Adapter == nil {
		cfg.Adapter = transport.NewRESTAdapter(nil)
	}
	return &BearerClient{config: cfg}, nil
}

// Client returns the cached client, building and probing it on first use.
// Concurrent callers wait for the single build in progress.
func (b *BearerClient) Client(ctx context.Context) (*transport.Client, error) {
	if b == nil {
		return nil, fmt.Errorf("auth: bearer client is nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}

	token, err := b.config.Tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	client := b.build(token)
	if b.config.ProbePath != "" {
		_, probeErr := client.Get(ctx, b.config.ProbePath)
		switch {
		case probeErr == nil:
		case transport.IsUnauthorized(probeErr):
			token, err = b.config.Tokens.ForceRefresh(ctx)
			if err != nil {
				return nil, refreshFailure(err)
			}
			client = b.build(token)
		default:
			return nil, probeErr
		}
	}
	b.client = client
	return client, nil
}

// Reset drops the cached client so the next call rebuilds and probes it.
func (b *BearerClient) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.client = nil
	b.mu.Unlock()
}

func (b *BearerClient) build(token string) *transport.Client {
	headers := cloneHeaders(b.config.Headers)
	headers["Authorization"] = "Bearer " + strings.TrimSpace(token)
	client := transport.NewClient(b.config.BaseURL, b.config.Adapter,
		transport.WithTimeout(b.config.Timeout),
		transport.WithMaxResponseBodyBytes(b.config.MaxResponseBodyBytes),
		transport.WithThrottle(b.config.Throttle),
	)
	client.Headers = headers
	return client
}

// refreshFailure keeps a failed refresh after a 401 probe classified as an
// authorization failure unless the token source already said otherwise.
func refreshFailure(err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryAuth, "auth: token refresh after unauthorized probe failed").
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.IntegrationErrorUnauthorized)
}
