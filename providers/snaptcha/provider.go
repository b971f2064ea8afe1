package snaptcha

import (
	"bytes"
	"context"
	"html/template"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-form-integrations/core"
)

const ProviderID = "snaptcha"

// TokenGenerator issues the hidden field name and per-form value that the
// Snaptcha host plugin verifies on submission.
type TokenGenerator interface {
	FieldName(ctx context.Context) (string, error)
	FieldValue(ctx context.Context, form string) (string, error)
}

// SubmissionValidator verifies a submitted token. When none is configured
// the token is considered verified by the host before delivery.
type SubmissionValidator interface {
	ValidateSubmission(ctx context.Context, submission core.Submission) (bool, error)
}

type Config struct {
	Handle    string
	Tokens    TokenGenerator
	Validator SubmissionValidator
	Logger    core.Logger
}

type Provider struct {
	config Config
	logger core.Logger
}

func DefaultConfig() Config {
	return Config{Handle: ProviderID}
}

var hiddenInput = template.Must(template.New("snaptcha").Parse(
	`<input type="hidden" name="{{.Name}}" value="{{.Value}}">`,
))

func New(cfg Config) (*Provider, error) {
	cfg.Handle = strings.TrimSpace(cfg.Handle)
	if cfg.Handle == "" {
		cfg.Handle = ProviderID
	}
	return &Provider{config: cfg, logger: glog.Ensure(cfg.Logger)}, nil
}

func (p *Provider) Handle() string             { return p.config.Handle }
func (p *Provider) ProviderID() string         { return ProviderID }
func (p *Provider) Kind() core.IntegrationKind { return core.IntegrationKindCaptcha }

func (p *Provider) Validate() error {
	if p.config.Tokens == nil {
		return core.NewValidationError("providers/snaptcha: configuration is incomplete",
			goerrors.FieldError{Field: "tokens", Message: "a token generator is required"},
		)
	}
	return nil
}

// FrontEndHTML renders the single hidden input carrying the token.
func (p *Provider) FrontEndHTML(ctx context.Context, form string) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	name, err := p.config.Tokens.FieldName(ctx)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", core.NewValidationError("providers/snaptcha: field name is empty",
			goerrors.FieldError{Field: "field_name", Message: "token generator returned no field name"},
		)
	}
	value, err := p.config.Tokens.FieldValue(ctx, form)
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	if err := hiddenInput.Execute(&out, struct{ Name, Value string }{Name: name, Value: value}); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "providers/snaptcha: render hidden input")
	}
	return out.String(), nil
}

func (p *Provider) ValidateSubmission(ctx context.Context, submission core.Submission) (bool, error) {
	if p.config.Validator == nil {
		return true, nil
	}
	valid, err := p.config.Validator.ValidateSubmission(ctx, submission)
	if err != nil {
		p.logger.WithContext(ctx).Warn("snaptcha validation failed",
			"integration", p.Handle(),
			"submission_id", submission.ID,
			"error", err,
		)
		return false, err
	}
	return valid, nil
}

var _ core.CaptchaIntegration = (*Provider)(nil)
