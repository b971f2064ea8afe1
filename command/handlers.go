package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-form-integrations/core"
)

type DeliveryService interface {
	SendSubmission(ctx context.Context, req core.SendSubmissionRequest) core.DeliveryResult
}

type FormSettingsService interface {
	FetchFormSettings(ctx context.Context, req core.FetchFormSettingsRequest) (core.FormSettings, error)
}

type SendSubmissionCommand struct {
	service DeliveryService
}

func NewSendSubmissionCommand(service DeliveryService) *SendSubmissionCommand {
	return &SendSubmissionCommand{service: service}
}

// Execute stores the delivery result and returns its error when the
// delivery failed.
func (c *SendSubmissionCommand) Execute(ctx context.Context, msg SendSubmissionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	result := c.service.SendSubmission(ctx, msg.Request)
	storeResult(ctx, result)
	if result.Status == core.DeliveryStatusFailed {
		return result.Err
	}
	return nil
}

type RefreshFormSettingsCommand struct {
	service FormSettingsService
}

func NewRefreshFormSettingsCommand(service FormSettingsService) *RefreshFormSettingsCommand {
	return &RefreshFormSettingsCommand{service: service}
}

func (c *RefreshFormSettingsCommand) Execute(ctx context.Context, msg RefreshFormSettingsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: form settings service is required")
	}
	out, err := c.service.FetchFormSettings(ctx, core.FetchFormSettingsRequest{Handle: msg.Handle, Refresh: true})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
