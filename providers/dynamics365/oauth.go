package dynamics365

import (
	"strings"

	"github.com/goliatone/go-form-integrations/auth"
	"github.com/goliatone/go-form-integrations/core"
)

const (
	DefaultAuthority = "https://login.microsoftonline.com"
	defaultTenant    = "common"
)

// DefaultScopes are requested alongside the organization resource.
var DefaultScopes = []string{"openid", "profile", "email", "offline_access", "user.read"}

// AzureTokenURL returns the Azure AD v1 token endpoint for tenant.
func AzureTokenURL(tenant string) string {
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		tenant = defaultTenant
	}
	return DefaultAuthority + "/" + tenant + "/oauth2/token"
}

func tokenSource(cfg Config) (core.TokenSource, error) {
	if cfg.Tokens != nil {
		return cfg.Tokens, nil
	}
	if strings.TrimSpace(cfg.RefreshToken) == "" {
		return auth.NewStaticTokenSource(cfg.AccessToken, nil), nil
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = AzureTokenURL(cfg.TenantID)
	}
	return auth.NewRefreshTokenSource(auth.RefreshTokenSourceConfig{
		TokenURL:     tokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Resource:     strings.TrimRight(strings.TrimSpace(cfg.APIDomain), "/"),
		Scopes:       DefaultScopes,
		Initial: auth.Token{
			AccessToken:  strings.TrimSpace(cfg.AccessToken),
			RefreshToken: strings.TrimSpace(cfg.RefreshToken),
		},
		Adapter: cfg.Adapter,
	})
}
