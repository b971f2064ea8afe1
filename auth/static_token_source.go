package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-form-integrations/core"
)

// RefreshFunc obtains a new access token from the host credential store.
type RefreshFunc func(ctx context.Context) (string, error)

// StaticTokenSource serves a host supplied token and delegates forced
// refreshes to the host.
type StaticTokenSource struct {
	mu      sync.Mutex
	token   string
	refresh RefreshFunc
}

func NewStaticTokenSource(token string, refresh RefreshFunc) *StaticTokenSource {
	return &StaticTokenSource{token: strings.TrimSpace(token), refresh: refresh}
}

func (s *StaticTokenSource) Token(context.Context) (string, error) {
	if s == nil {
		return "", fmt.Errorf("auth: token source is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", unauthorizedError("auth: access token is required")
	}
	return s.token, nil
}

func (s *StaticTokenSource) ForceRefresh(ctx context.Context) (string, error) {
	if s == nil {
		return "", fmt.Errorf("auth: token source is nil")
	}
	if s.refresh == nil {
		return "", unauthorizedError("auth: token refresh is not supported")
	}
	token, err := s.refresh(ctx)
	if err != nil {
		return "", err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", unauthorizedError("auth: refreshed access token is empty")
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return token, nil
}

func unauthorizedError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.IntegrationErrorUnauthorized)
}
