package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-form-integrations/core"
)

type stubService struct {
	sendFn  func(ctx context.Context, req core.SendSubmissionRequest) core.DeliveryResult
	fetchFn func(ctx context.Context, req core.FetchFormSettingsRequest) (core.FormSettings, error)
}

func (s stubService) SendSubmission(ctx context.Context, req core.SendSubmissionRequest) core.DeliveryResult {
	return s.sendFn(ctx, req)
}

func (s stubService) FetchFormSettings(ctx context.Context, req core.FetchFormSettingsRequest) (core.FormSettings, error) {
	return s.fetchFn(ctx, req)
}

func TestSendSubmissionCommand_StoresResult(t *testing.T) {
	svc := stubService{sendFn: func(_ context.Context, req core.SendSubmissionRequest) core.DeliveryResult {
		if req.Handle != "crm" || req.Submission.ID != "sub-1" {
			t.Fatalf("unexpected request: %#v", req)
		}
		return core.Delivered(map[string]string{"contact": "C1"})
	}}
	collector := gocmd.NewResult[core.DeliveryResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := NewSendSubmissionCommand(svc).Execute(ctx, SendSubmissionMessage{Request: core.SendSubmissionRequest{
		Handle:     "crm",
		Submission: core.Submission{ID: "sub-1"},
	}})
	if err != nil {
		t.Fatalf("execute send: %v", err)
	}
	result, ok := collector.Load()
	if !ok || result.Records["contact"] != "C1" {
		t.Fatalf("expected stored delivery result, got %#v", result)
	}
}

func TestSendSubmissionCommand_FailedDeliveryReturnsError(t *testing.T) {
	boom := errors.New("boom")
	svc := stubService{sendFn: func(context.Context, core.SendSubmissionRequest) core.DeliveryResult {
		return core.Failed(boom, nil)
	}}
	err := NewSendSubmissionCommand(svc).Execute(context.Background(), SendSubmissionMessage{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected delivery error, got %v", err)
	}

	svc.sendFn = func(context.Context, core.SendSubmissionRequest) core.DeliveryResult {
		return core.Suppressed(nil)
	}
	if err := NewSendSubmissionCommand(svc).Execute(context.Background(), SendSubmissionMessage{}); err != nil {
		t.Fatalf("expected suppressed delivery to succeed, got %v", err)
	}
}

func TestRefreshFormSettingsCommand_ForcesRefresh(t *testing.T) {
	svc := stubService{fetchFn: func(_ context.Context, req core.FetchFormSettingsRequest) (core.FormSettings, error) {
		if !req.Refresh || req.Handle != "crm" {
			t.Fatalf("expected refresh request, got %#v", req)
		}
		return core.FormSettings{Lists: []core.MarketingList{{ID: "1"}}}, nil
	}}
	collector := gocmd.NewResult[core.FormSettings]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewRefreshFormSettingsCommand(svc).Execute(ctx, RefreshFormSettingsMessage{Handle: "crm"}); err != nil {
		t.Fatalf("execute refresh: %v", err)
	}
	if settings, ok := collector.Load(); !ok || len(settings.Lists) != 1 {
		t.Fatalf("expected stored settings")
	}
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	for _, err := range []error{
		(SendSubmissionMessage{}).Validate(),
		(SendSubmissionMessage{Request: core.SendSubmissionRequest{Handle: "crm"}}).Validate(),
		(RefreshFormSettingsMessage{}).Validate(),
	} {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("expected go-errors envelope, got %T", err)
		}
		if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.IntegrationErrorBadInput {
			t.Fatalf("unexpected error envelope: %#v", rich)
		}
	}
}

func TestCommands_NilServiceReturnsRichError(t *testing.T) {
	var send *SendSubmissionCommand
	var refresh *RefreshFormSettingsCommand
	for _, err := range []error{
		send.Execute(context.Background(), SendSubmissionMessage{}),
		refresh.Execute(context.Background(), RefreshFormSettingsMessage{}),
	} {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
			t.Fatalf("expected internal dependency error, got %v", err)
		}
	}
}
