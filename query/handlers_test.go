package query

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-form-integrations/core"
)

type stubService struct {
	fetchReq core.FetchFormSettingsRequest
	events   []core.IntegrationEvent
	listErr  error
}

func (s *stubService) FetchFormSettings(_ context.Context, req core.FetchFormSettingsRequest) (core.FormSettings, error) {
	s.fetchReq = req
	return core.FormSettings{Lists: []core.MarketingList{{ID: "42"}}}, nil
}

func (s *stubService) CheckConnection(_ context.Context, handle string) (bool, error) {
	return handle == "crm", nil
}

func (s *stubService) ListEvents(_ context.Context, filter core.EventFilter) ([]core.IntegrationEvent, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	return s.events, len(s.events) + filter.Offset, nil
}

func (s *stubService) RenderCaptcha(_ context.Context, handle string, form string) (string, error) {
	return handle + ":" + form, nil
}

func (s *stubService) ValidateCaptcha(_ context.Context, _ string, submission core.Submission) (bool, error) {
	return submission.ID == "ok", nil
}

func TestFetchFormSettingsQuery_DoesNotForceRefresh(t *testing.T) {
	svc := &stubService{}
	settings, err := NewFetchFormSettingsQuery(svc).Query(context.Background(), FetchFormSettingsMessage{Handle: "newsletter"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if svc.fetchReq.Refresh || svc.fetchReq.Handle != "newsletter" || len(settings.Lists) != 1 {
		t.Fatalf("unexpected fetch: %#v %#v", svc.fetchReq, settings)
	}
}

func TestListIntegrationEventsQuery_ReturnsPage(t *testing.T) {
	svc := &stubService{events: []core.IntegrationEvent{{ID: "e1"}, {ID: "e2"}}}
	page, err := NewListIntegrationEventsQuery(svc).Query(context.Background(), ListIntegrationEventsMessage{
		Filter: core.EventFilter{Offset: 3},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Items) != 2 || page.Total != 5 {
		t.Fatalf("unexpected page: %#v", page)
	}

	svc.listErr = errors.New("no reader")
	if _, err := NewListIntegrationEventsQuery(svc).Query(context.Background(), ListIntegrationEventsMessage{}); err == nil {
		t.Fatalf("expected lister error")
	}
}

func TestConnectionAndCaptchaQueries(t *testing.T) {
	svc := &stubService{}
	connected, err := NewCheckConnectionQuery(svc).Query(context.Background(), CheckConnectionMessage{Handle: "crm"})
	if err != nil || !connected {
		t.Fatalf("expected connected, got %v %v", connected, err)
	}
	html, _ := NewRenderCaptchaQuery(svc).Query(context.Background(), RenderCaptchaMessage{Handle: "snaptcha", Form: "contact"})
	if html != "snaptcha:contact" {
		t.Fatalf("unexpected html %q", html)
	}
	valid, _ := NewValidateCaptchaQuery(svc).Query(context.Background(), ValidateCaptchaMessage{
		Handle:     "snaptcha",
		Submission: core.Submission{ID: "ok"},
	})
	if !valid {
		t.Fatalf("expected valid captcha")
	}
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	for _, err := range []error{
		(FetchFormSettingsMessage{}).Validate(),
		(CheckConnectionMessage{}).Validate(),
		(RenderCaptchaMessage{}).Validate(),
		(ValidateCaptchaMessage{}).Validate(),
		(ListIntegrationEventsMessage{Filter: core.EventFilter{Offset: -1}}).Validate(),
		(ListIntegrationEventsMessage{Filter: core.EventFilter{Limit: 501}}).Validate(),
	} {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("expected go-errors envelope, got %T", err)
		}
		if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.IntegrationErrorBadInput {
			t.Fatalf("unexpected envelope: %#v", rich)
		}
	}
}

func TestQueries_NilDependencyReturnsRichError(t *testing.T) {
	var fetch *FetchFormSettingsQuery
	_, err := fetch.Query(context.Background(), FetchFormSettingsMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal dependency error, got %v", err)
	}
}
