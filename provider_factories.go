package integrations

import (
	"strings"

	"github.com/goliatone/go-form-integrations/adapters/gologger"
	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/providers/dynamics365"
	"github.com/goliatone/go-form-integrations/providers/mailerlite"
	"github.com/goliatone/go-form-integrations/providers/snaptcha"
	"github.com/goliatone/go-form-integrations/ratelimit"
	"github.com/goliatone/go-form-integrations/transport"
)

type FactoryOption func(*factoryOptions)

type factoryOptions struct {
	loggerProvider core.LoggerProvider
	logger         core.Logger
	http           core.HTTPConfig
	hasHTTP        bool
	rateLimits     *ratelimit.AdaptivePolicy
}

// WithProviderLogging names connector loggers "integrations.<provider id>"
// through provider, falling back to logger.
func WithProviderLogging(provider core.LoggerProvider, logger core.Logger) FactoryOption {
	return func(o *factoryOptions) {
		o.loggerProvider = provider
		o.logger = logger
	}
}

// WithHTTPDefaults applies the service HTTP settings to connectors whose
// config leaves them unset.
func WithHTTPDefaults(cfg core.HTTPConfig) FactoryOption {
	return func(o *factoryOptions) {
		o.http = cfg
		o.hasHTTP = true
	}
}

// WithRateLimitPolicy throttles each connector against the quota learned
// from its own responses.
func WithRateLimitPolicy(policy *ratelimit.AdaptivePolicy) FactoryOption {
	return func(o *factoryOptions) {
		o.rateLimits = policy
	}
}

func resolveFactoryOptions(opts []FactoryOption) factoryOptions {
	out := factoryOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	return out
}

func (o factoryOptions) logFor(providerID string) core.Logger {
	return gologger.ForIntegration(o.loggerProvider, o.logger, providerID)
}

func (o factoryOptions) throttleFor(providerID string, handle string) transport.Throttle {
	if o.rateLimits == nil {
		return nil
	}
	if handle == "" {
		handle = providerID
	}
	return o.rateLimits.For(ratelimit.Key{ProviderID: providerID, Handle: handle})
}

func Dynamics365Provider(cfg dynamics365.Config, opts ...FactoryOption) (*dynamics365.Provider, error) {
	options := resolveFactoryOptions(opts)
	if cfg.Logger == nil {
		cfg.Logger = options.logFor(dynamics365.ProviderID)
	}
	if options.hasHTTP {
		if cfg.Timeout <= 0 {
			cfg.Timeout = options.http.Timeout()
		}
		if cfg.MaxResponseBodyBytes <= 0 {
			cfg.MaxResponseBodyBytes = options.http.MaxResponseBodyBytes
		}
	}
	if cfg.Throttle == nil {
		cfg.Throttle = options.throttleFor(dynamics365.ProviderID, strings.TrimSpace(cfg.Handle))
	}
	return dynamics365.New(cfg)
}

func MailerLiteProvider(cfg mailerlite.Config, opts ...FactoryOption) (*mailerlite.Provider, error) {
	options := resolveFactoryOptions(opts)
	if cfg.Logger == nil {
		cfg.Logger = options.logFor(mailerlite.ProviderID)
	}
	if options.hasHTTP {
		if cfg.Timeout <= 0 {
			cfg.Timeout = options.http.Timeout()
		}
		if cfg.MaxResponseBodyBytes <= 0 {
			cfg.MaxResponseBodyBytes = options.http.MaxResponseBodyBytes
		}
	}
	if cfg.Throttle == nil {
		cfg.Throttle = options.throttleFor(mailerlite.ProviderID, strings.TrimSpace(cfg.Handle))
	}
	return mailerlite.New(cfg)
}

func SnaptchaProvider(cfg snaptcha.Config, opts ...FactoryOption) (*snaptcha.Provider, error) {
	options := resolveFactoryOptions(opts)
	if cfg.Logger == nil {
		cfg.Logger = options.logFor(snaptcha.ProviderID)
	}
	return snaptcha.New(cfg)
}
