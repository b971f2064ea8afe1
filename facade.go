package integrations

import (
	"fmt"

	integrationscommand "github.com/goliatone/go-form-integrations/command"
	integrationsquery "github.com/goliatone/go-form-integrations/query"
)

type CommandQueryService interface {
	integrationscommand.DeliveryService
	integrationscommand.FormSettingsService
	integrationsquery.ConnectionChecker
	integrationsquery.CaptchaService
}

type Commands struct {
	SendSubmission      *integrationscommand.SendSubmissionCommand
	RefreshFormSettings *integrationscommand.RefreshFormSettingsCommand
}

type Queries struct {
	FetchFormSettings     *integrationsquery.FetchFormSettingsQuery
	CheckConnection       *integrationsquery.CheckConnectionQuery
	ListIntegrationEvents *integrationsquery.ListIntegrationEventsQuery
	RenderCaptcha         *integrationsquery.RenderCaptchaQuery
	ValidateCaptcha       *integrationsquery.ValidateCaptchaQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	eventLister integrationsquery.EventLister
}

// WithEventLister overrides the event source used by the event listing query.
func WithEventLister(lister integrationsquery.EventLister) FacadeOption {
	return func(options *facadeOptions) {
		options.eventLister = lister
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("integrations: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	lister := cfg.eventLister
	if lister == nil {
		lister, _ = service.(integrationsquery.EventLister)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SendSubmission:      integrationscommand.NewSendSubmissionCommand(service),
		RefreshFormSettings: integrationscommand.NewRefreshFormSettingsCommand(service),
	}
	facade.queries = Queries{
		FetchFormSettings:     integrationsquery.NewFetchFormSettingsQuery(service),
		CheckConnection:       integrationsquery.NewCheckConnectionQuery(service),
		ListIntegrationEvents: integrationsquery.NewListIntegrationEventsQuery(lister),
		RenderCaptcha:         integrationsquery.NewRenderCaptchaQuery(service),
		ValidateCaptcha:       integrationsquery.NewValidateCaptchaQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
