package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/transport"
)

// Token is an OAuth2 access token together with the refresh token that
// renews it.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

func (t Token) expired(now time.Time, renewBefore time.Duration) bool {
	if strings.TrimSpace(t.AccessToken) == "" {
		return true
	}
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(renewBefore).Before(t.ExpiresAt)
}

type RefreshTokenSourceConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	// Resource is sent for Azure AD v1 endpoints, which scope tokens by
	// resource rather than by scope.
	Resource    string
	Scopes      []string
	Initial     Token
	RenewBefore time.Duration
	Adapter     transport.Adapter
	Now         func() time.Time
	// OnRefresh lets the host persist a renewed token.
	OnRefresh func(ctx context.Context, token Token) error
}

// RefreshTokenSource caches an OAuth2 access token and renews it with the
// refresh_token grant when it is close to expiry or when forced.
type RefreshTokenSource struct {
	config RefreshTokenSourceConfig
	client *transport.Client
	mu     sync.Mutex
	token  Token
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    any    `json:"expires_in"`
	ExpiresOn    any    `json:"expires_on"`
}

func NewRefreshTokenSource(cfg RefreshTokenSourceConfig) (*RefreshTokenSource, error) {
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.Resource = strings.TrimSpace(cfg.Resource)
	cfg.Scopes = normalizeScopes(cfg.Scopes)
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("auth: oauth2 token url is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("auth: oauth2 client id is required")
	}
	if cfg.RenewBefore <= 0 {
		cfg.RenewBefore = 2 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &RefreshTokenSource{
		config: cfg,
		client: transport.NewClient("", cfg.Adapter),
		token:  cfg.Initial,
	}, nil
}

func (s *RefreshTokenSource) Token(ctx context.Context) (string, error) {
	if s == nil {
		return "", fmt.Errorf("auth: token source is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.token.expired(s.config.Now(), s.config.RenewBefore) {
		return s.token.AccessToken, nil
	}
	token, err := s.exchange(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (s *RefreshTokenSource) ForceRefresh(ctx context.Context) (string, error) {
	if s == nil {
		return "", fmt.Errorf("auth: token source is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	token, err := s.exchange(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// Current returns the cached token without renewing it.
func (s *RefreshTokenSource) Current() Token {
	if s == nil {
		return Token{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *RefreshTokenSource) exchange(ctx context.Context) (Token, error) {
	refreshToken := strings.TrimSpace(s.token.RefreshToken)
	if refreshToken == "" {
		return Token{}, goerrors.New("auth: refresh token is required to renew access", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(core.IntegrationErrorUnauthorized)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", s.config.ClientID)
	if s.config.ClientSecret != "" {
		form.Set("client_secret", s.config.ClientSecret)
	}
	if s.config.Resource != "" {
		form.Set("resource", s.config.Resource)
	}
	if len(s.config.Scopes) > 0 {
		form.Set("scope", strings.Join(s.config.Scopes, " "))
	}

	res, err := s.client.Do(ctx, http.MethodPost, s.config.TokenURL, []byte(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "application/json",
	})
	if err != nil {
		return Token{}, err
	}
	var payload tokenResponse
	if err := transport.DecodeJSON(res, &payload); err != nil {
		return Token{}, err
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return Token{}, goerrors.New("auth: token response missing access_token", goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.IntegrationErrorExternalFailure)
	}

	now := s.config.Now().UTC()
	next := Token{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: firstNonEmpty(payload.RefreshToken, refreshToken),
		TokenType:    firstNonEmpty(payload.TokenType, "Bearer"),
		ExpiresAt:    resolveExpiry(now, payload),
	}
	s.token = next
	if s.config.OnRefresh != nil {
		if err := s.config.OnRefresh(ctx, next); err != nil {
			return Token{}, err
		}
	}
	return next, nil
}

func resolveExpiry(now time.Time, payload tokenResponse) time.Time {
	if seconds, ok := numericValue(payload.ExpiresIn); ok && seconds > 0 {
		return now.Add(time.Duration(seconds) * time.Second)
	}
	if epoch, ok := numericValue(payload.ExpiresOn); ok && epoch > 0 {
		return time.Unix(epoch, 0).UTC()
	}
	return now.Add(time.Hour)
}

// numericValue reads token lifetimes, which Azure AD v1 sends as strings.
func numericValue(value any) (int64, bool) {
	switch typed := value.(type) {
	case float64:
		return int64(typed), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
