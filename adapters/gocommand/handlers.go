package gocommand

import (
	"context"
	"errors"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	integrationscommand "github.com/goliatone/go-form-integrations/command"
	"github.com/goliatone/go-form-integrations/core"
	integrationsquery "github.com/goliatone/go-form-integrations/query"
)

// IntegrationService is the surface the mounted handlers dispatch to.
type IntegrationService interface {
	integrationscommand.DeliveryService
	integrationscommand.FormSettingsService
	integrationsquery.ConnectionChecker
	integrationsquery.EventLister
	integrationsquery.CaptchaService
}

// Mount registers and subscribes every integration command and query
// against service. On failure the handlers mounted by this call are
// unsubscribed.
func (b *Bus) Mount(service IntegrationService, runnerOpts ...runner.Option) error {
	if b == nil || b.registry == nil {
		return errors.New("gocommand: registry is not configured")
	}
	if service == nil {
		return errors.New("gocommand: integration service is required")
	}
	b.mu.Lock()
	start := len(b.subscriptions)
	b.mu.Unlock()
	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return mountCommand[integrationscommand.SendSubmissionMessage](b, integrationscommand.NewSendSubmissionCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return mountCommand[integrationscommand.RefreshFormSettingsMessage](b, integrationscommand.NewRefreshFormSettingsCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return mountQuery[integrationsquery.FetchFormSettingsMessage, core.FormSettings](b, integrationsquery.NewFetchFormSettingsQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return mountQuery[integrationsquery.CheckConnectionMessage, bool](b, integrationsquery.NewCheckConnectionQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return mountQuery[integrationsquery.ListIntegrationEventsMessage, integrationsquery.EventPage](b, integrationsquery.NewListIntegrationEventsQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return mountQuery[integrationsquery.RenderCaptchaMessage, string](b, integrationsquery.NewRenderCaptchaQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return mountQuery[integrationsquery.ValidateCaptchaMessage, bool](b, integrationsquery.NewValidateCaptchaQuery(service), runnerOpts...)
		},
	}
	for _, step := range steps {
		if _, err := step(); err != nil {
			b.unmountFrom(start)
			return err
		}
	}
	return nil
}

func (b *Bus) unmountFrom(start int) {
	b.mu.Lock()
	if start > len(b.subscriptions) {
		start = len(b.subscriptions)
	}
	mounted := append(Subscriptions(nil), b.subscriptions[start:]...)
	b.subscriptions = b.subscriptions[:start]
	b.mu.Unlock()
	mounted.Unsubscribe()
}

// SendSubmission dispatches a send command and returns the stored result.
func SendSubmission(ctx context.Context, req core.SendSubmissionRequest) (core.DeliveryResult, error) {
	msg := integrationscommand.SendSubmissionMessage{Request: req}
	if err := ValidateMessageContract(msg); err != nil {
		return core.DeliveryResult{}, err
	}
	collector := gocmd.NewResult[core.DeliveryResult]()
	err := commanddispatcher.Dispatch(gocmd.ContextWithResult(ctx, collector), msg)
	result, _ := collector.Load()
	return result, err
}

// RefreshFormSettings dispatches a refresh command and returns the newly
// discovered settings.
func RefreshFormSettings(ctx context.Context, handle string) (core.FormSettings, error) {
	msg := integrationscommand.RefreshFormSettingsMessage{Handle: handle}
	if err := ValidateMessageContract(msg); err != nil {
		return core.FormSettings{}, err
	}
	collector := gocmd.NewResult[core.FormSettings]()
	err := commanddispatcher.Dispatch(gocmd.ContextWithResult(ctx, collector), msg)
	settings, _ := collector.Load()
	return settings, err
}

func FetchFormSettings(ctx context.Context, handle string) (core.FormSettings, error) {
	return query[integrationsquery.FetchFormSettingsMessage, core.FormSettings](ctx, integrationsquery.FetchFormSettingsMessage{Handle: handle})
}

func CheckConnection(ctx context.Context, handle string) (bool, error) {
	return query[integrationsquery.CheckConnectionMessage, bool](ctx, integrationsquery.CheckConnectionMessage{Handle: handle})
}

func ListIntegrationEvents(ctx context.Context, filter core.EventFilter) (integrationsquery.EventPage, error) {
	return query[integrationsquery.ListIntegrationEventsMessage, integrationsquery.EventPage](ctx, integrationsquery.ListIntegrationEventsMessage{Filter: filter})
}

func RenderCaptcha(ctx context.Context, handle string, form string) (string, error) {
	return query[integrationsquery.RenderCaptchaMessage, string](ctx, integrationsquery.RenderCaptchaMessage{Handle: handle, Form: form})
}

func ValidateCaptcha(ctx context.Context, handle string, submission core.Submission) (bool, error) {
	return query[integrationsquery.ValidateCaptchaMessage, bool](ctx, integrationsquery.ValidateCaptchaMessage{Handle: handle, Submission: submission})
}

func query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := ValidateMessageContract(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}
