package dynamics365

import (
	"context"
	"strings"
	"sync"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-form-integrations/auth"
	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/transport"
)

// Provider relays form submissions to Dynamics 365 contacts, accounts,
// leads and opportunities.
type Provider struct {
	config Config
	logger core.Logger
	bearer *auth.BearerClient

	mu       sync.RWMutex
	settings core.FormSettings
}

// New builds a connector for cfg. Incomplete credentials do not fail
// construction; they are reported by Validate and by every remote call.
func New(cfg Config) (*Provider, error) {
	cfg.Handle = strings.TrimSpace(cfg.Handle)
	if cfg.Handle == "" {
		cfg.Handle = ProviderID
	}
	provider := &Provider{
		config:   cfg,
		logger:   glog.Ensure(cfg.Logger),
		settings: cfg.Settings.Clone(),
	}
	if cfg.Validate() != nil {
		return provider, nil
	}

	tokens, err := tokenSource(cfg)
	if err != nil {
		return nil, err
	}
	bearer, err := auth.NewBearerClient(auth.BearerClientConfig{
		BaseURL: cfg.BaseURL(),
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"Accept":           "application/json",
			"OData-Version":    "4.0",
			"OData-MaxVersion": "4.0",
		},
		ProbePath:            ProbePath,
		Tokens:               tokens,
		Adapter:              cfg.Adapter,
		Timeout:              cfg.Timeout,
		MaxResponseBodyBytes: cfg.MaxResponseBodyBytes,
		Throttle:             cfg.Throttle,
	})
	if err != nil {
		return nil, err
	}
	provider.bearer = bearer
	return provider, nil
}

func (p *Provider) Handle() string             { return p.config.Handle }
func (p *Provider) ProviderID() string         { return ProviderID }
func (p *Provider) Kind() core.IntegrationKind { return core.IntegrationKindCRM }

func (p *Provider) Validate() error {
	return p.config.Validate()
}

// ValidateFormSettings checks that every required field of an enabled
// entity has a mapped form field.
func (p *Provider) ValidateFormSettings(settings core.FormSettings) error {
	for _, entity := range Entities {
		mapping := p.config.Mapping(entity)
		if !mapping.Enabled {
			continue
		}
		if err := core.ValidateFieldMapping(entity, mapping.Fields, settings.Fields(entity)); err != nil {
			return err
		}
	}
	return nil
}

// FetchConnection reports whether an authenticated client can be built and
// its probe request succeeds.
func (p *Provider) FetchConnection(ctx context.Context) (bool, error) {
	if _, err := p.client(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Settings returns the settings used to type submitted values.
func (p *Provider) Settings() core.FormSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings.Clone()
}

func (p *Provider) storeSettings(settings core.FormSettings) {
	p.mu.Lock()
	p.settings = settings.Clone()
	p.mu.Unlock()
}

func (p *Provider) client(ctx context.Context) (*transport.Client, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p.bearer.Client(ctx)
}

// dropClientOnUnauthorized forgets the cached client so the next call
// probes and refreshes again.
func (p *Provider) dropClientOnUnauthorized(err error) {
	if transport.IsUnauthorized(err) && p.bearer != nil {
		p.bearer.Reset()
	}
}

var (
	_ core.FormIntegration       = (*Provider)(nil)
	_ core.FormSettingsValidator = (*Provider)(nil)
)
