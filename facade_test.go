package integrations

import (
	"context"
	"errors"
	"testing"

	integrationscommand "github.com/goliatone/go-form-integrations/command"
	"github.com/goliatone/go-form-integrations/core"
	integrationsquery "github.com/goliatone/go-form-integrations/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.SendSubmission == nil || commands.RefreshFormSettings == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.FetchFormSettings == nil || queries.CheckConnection == nil || queries.ListIntegrationEvents == nil ||
		queries.RenderCaptcha == nil || queries.ValidateCaptcha == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if facade.Service() == nil {
		t.Fatalf("expected service to be exposed")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	ctx := context.Background()

	if err := facade.Commands().SendSubmission.Execute(ctx, integrationscommand.SendSubmissionMessage{
		Request: core.SendSubmissionRequest{
			Handle:     "crm",
			Submission: core.Submission{ID: "sub-1", Values: map[string]any{"email": "ada@example.com"}},
		},
	}); err != nil {
		t.Fatalf("execute send command: %v", err)
	}
	if svc.lastSend.Handle != "crm" || svc.lastSend.Submission.ID != "sub-1" {
		t.Fatalf("unexpected send delegation payload: %#v", svc.lastSend)
	}

	if err := facade.Commands().RefreshFormSettings.Execute(ctx, integrationscommand.RefreshFormSettingsMessage{Handle: "crm"}); err != nil {
		t.Fatalf("execute refresh command: %v", err)
	}
	if !svc.lastFetch.Refresh || svc.lastFetch.Handle != "crm" {
		t.Fatalf("expected refresh to force a fetch, got %#v", svc.lastFetch)
	}

	settings, err := facade.Queries().FetchFormSettings.Query(ctx, integrationsquery.FetchFormSettingsMessage{Handle: "crm"})
	if err != nil {
		t.Fatalf("query form settings: %v", err)
	}
	if len(settings.Lists) != 1 || settings.Lists[0].ID != "crm" {
		t.Fatalf("unexpected settings: %#v", settings)
	}
	if svc.lastFetch.Refresh {
		t.Fatalf("expected plain fetch to use stored settings")
	}

	ok, err := facade.Queries().CheckConnection.Query(ctx, integrationsquery.CheckConnectionMessage{Handle: "crm"})
	if err != nil || !ok {
		t.Fatalf("expected connection check to pass, got ok=%v err=%v", ok, err)
	}

	page, err := facade.Queries().ListIntegrationEvents.Query(ctx, integrationsquery.ListIntegrationEventsMessage{
		Filter: core.EventFilter{Integration: "crm", Limit: 20},
	})
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("unexpected event page: %#v", page)
	}

	html, err := facade.Queries().RenderCaptcha.Query(ctx, integrationsquery.RenderCaptchaMessage{Handle: "snaptcha", Form: "contact"})
	if err != nil || html == "" {
		t.Fatalf("expected rendered captcha, got %q err=%v", html, err)
	}
	valid, err := facade.Queries().ValidateCaptcha.Query(ctx, integrationsquery.ValidateCaptchaMessage{Handle: "snaptcha"})
	if err != nil || !valid {
		t.Fatalf("expected captcha validation to pass, got %v err=%v", valid, err)
	}
}

func TestFacade_SendCommandReturnsDeliveryError(t *testing.T) {
	svc := &stubFacadeService{stubFacadeServiceWithoutEvents{sendErr: errors.New("crm unavailable")}}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	err = facade.Commands().SendSubmission.Execute(context.Background(), integrationscommand.SendSubmissionMessage{
		Request: core.SendSubmissionRequest{Handle: "crm", Submission: core.Submission{ID: "sub-1"}},
	})
	if err == nil {
		t.Fatalf("expected failed delivery to surface an error")
	}
}

func TestFacade_EventListerOverride(t *testing.T) {
	lister := &stubFacadeEventLister{total: 7}
	facade, err := NewFacade(&stubFacadeService{}, WithEventLister(lister))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	page, err := facade.Queries().ListIntegrationEvents.Query(context.Background(), integrationsquery.ListIntegrationEventsMessage{})
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if page.Total != 7 || !lister.called {
		t.Fatalf("expected override lister to serve the query, got %#v", page)
	}
}

func TestFacade_MissingEventListerFailsAtQueryTime(t *testing.T) {
	facade, err := NewFacade(&stubFacadeServiceWithoutEvents{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if _, err := facade.Queries().ListIntegrationEvents.Query(context.Background(), integrationsquery.ListIntegrationEventsMessage{}); err == nil {
		t.Fatalf("expected missing event lister to fail")
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeServiceWithoutEvents struct {
	lastSend  core.SendSubmissionRequest
	lastFetch core.FetchFormSettingsRequest
	sendErr   error
}

func (s *stubFacadeServiceWithoutEvents) SendSubmission(_ context.Context, req core.SendSubmissionRequest) core.DeliveryResult {
	s.lastSend = req
	if s.sendErr != nil {
		return core.Failed(s.sendErr, nil)
	}
	return core.Delivered(map[string]string{"contact": "c-1"})
}

func (s *stubFacadeServiceWithoutEvents) FetchFormSettings(_ context.Context, req core.FetchFormSettingsRequest) (core.FormSettings, error) {
	s.lastFetch = req
	return core.FormSettings{Lists: []core.MarketingList{{ID: req.Handle, Name: "Newsletter"}}}, nil
}

func (s *stubFacadeServiceWithoutEvents) CheckConnection(context.Context, string) (bool, error) {
	return true, nil
}

func (s *stubFacadeServiceWithoutEvents) RenderCaptcha(context.Context, string, string) (string, error) {
	return `<input type="hidden" name="snaptcha" value="token">`, nil
}

func (s *stubFacadeServiceWithoutEvents) ValidateCaptcha(context.Context, string, core.Submission) (bool, error) {
	return true, nil
}

type stubFacadeService struct {
	stubFacadeServiceWithoutEvents
}

func (s *stubFacadeService) ListEvents(_ context.Context, filter core.EventFilter) ([]core.IntegrationEvent, int, error) {
	return []core.IntegrationEvent{{ID: "evt-1", Integration: filter.Integration, Status: "delivered"}}, 1, nil
}

type stubFacadeEventLister struct {
	total  int
	called bool
}

func (l *stubFacadeEventLister) ListEvents(context.Context, core.EventFilter) ([]core.IntegrationEvent, int, error) {
	l.called = true
	return nil, l.total, nil
}

var (
	_ CommandQueryService           = (*stubFacadeService)(nil)
	_ integrationsquery.EventLister = (*stubFacadeService)(nil)
)
