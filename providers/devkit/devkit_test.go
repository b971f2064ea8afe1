package devkit

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/transport"
)

func TestFakeTransportAdapter_ScriptsAndCapturesRequests(t *testing.T) {
	adapter := NewFakeTransportAdapter("https://api.example.test/v2/").
		On(http.MethodGet, "groups", Status(http.StatusTooManyRequests), JSON(http.StatusOK, []any{}))

	first, err := adapter.Do(context.Background(), transport.Request{
		Method: http.MethodGet,
		URL:    "https://api.example.test/v2/groups?limit=10",
	})
	if err != nil {
		t.Fatalf("first fake call: %v", err)
	}
	if first.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected first scripted status 429, got %d", first.StatusCode)
	}

	for i := 0; i < 2; i++ {
		next, err := adapter.Do(context.Background(), transport.Request{
			Method: http.MethodGet,
			URL:    "https://api.example.test/v2/groups",
		})
		if err != nil {
			t.Fatalf("fake call %d: %v", i+2, err)
		}
		if next.StatusCode != http.StatusOK {
			t.Fatalf("expected last script to repeat, got %d", next.StatusCode)
		}
	}

	if len(adapter.Requests()) != 3 || adapter.Count(http.MethodGet, "groups") != 3 {
		t.Fatalf("expected three captured requests, got %v", adapter.Resources())
	}
}

func TestFakeTransportAdapter_UnscriptedRouteIsNotFound(t *testing.T) {
	adapter := NewFakeTransportAdapter("https://api.example.test/")
	res, err := adapter.Do(context.Background(), transport.Request{Method: http.MethodPost, URL: "https://api.example.test/leads"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unscripted route, got %d", res.StatusCode)
	}
}

func TestValidateTransportAdapterConformance(t *testing.T) {
	adapter := NewFakeTransportAdapter("https://api.example.test/").
		On(http.MethodGet, "items", Status(http.StatusBadGateway))
	if err := ValidateTransportAdapterConformance(context.Background(), adapter, transport.Request{
		Method: http.MethodGet,
		URL:    "https://api.example.test/items",
	}); err != nil {
		t.Fatalf("validate transport adapter conformance: %v", err)
	}
	if err := ValidateTransportAdapterConformance(context.Background(), nil, transport.Request{}); err == nil {
		t.Fatalf("expected nil adapter to fail")
	}
}

func TestValidateDeliveryConformance(t *testing.T) {
	good := &scriptedIntegration{result: core.Failed(core.NewPayloadMismatchError("id", nil, nil), nil)}
	if _, err := ValidateDeliveryConformance(context.Background(), good, core.DeliveryRequest{}); err != nil {
		t.Fatalf("expected classified failure to conform: %v", err)
	}

	bad := &scriptedIntegration{result: core.DeliveryResult{Status: core.DeliveryStatusFailed}}
	if _, err := ValidateDeliveryConformance(context.Background(), bad, core.DeliveryRequest{}); err == nil {
		t.Fatalf("expected failure without error to be rejected")
	}

	noisy := &scriptedIntegration{result: core.DeliveryResult{Status: core.DeliveryStatusDelivered, Err: errors.New("boom")}}
	if _, err := ValidateDeliveryConformance(context.Background(), noisy, core.DeliveryRequest{}); err == nil {
		t.Fatalf("expected delivered result with error to be rejected")
	}
}

func TestValidateIntegrationConformance_RequiresIdentity(t *testing.T) {
	if err := ValidateIntegrationConformance(&scriptedIntegration{handle: " "}); err == nil {
		t.Fatalf("expected blank handle to fail")
	}
	if err := ValidateIntegrationConformance(nil); err == nil {
		t.Fatalf("expected nil integration to fail")
	}
}

type scriptedIntegration struct {
	handle string
	result core.DeliveryResult
}

func (s *scriptedIntegration) Handle() string {
	if s.handle != "" {
		return s.handle
	}
	return "crm"
}
func (s *scriptedIntegration) ProviderID() string         { return "scripted" }
func (s *scriptedIntegration) Kind() core.IntegrationKind { return core.IntegrationKindCRM }
func (s *scriptedIntegration) Validate() error            { return nil }

func (s *scriptedIntegration) FetchFormSettings(context.Context) (core.FormSettings, error) {
	return core.FormSettings{}, nil
}

func (s *scriptedIntegration) SendPayload(context.Context, core.DeliveryRequest) core.DeliveryResult {
	return s.result
}

func (s *scriptedIntegration) FetchConnection(context.Context) (bool, error) { return true, nil }
