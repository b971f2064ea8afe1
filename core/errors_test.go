package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestIntegrationErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := integrationErrorMapper(stderrors.New("core: integration not registered: crm"))
	if mapped.TextCode != IntegrationErrorNotFound || mapped.Code != http.StatusNotFound {
		t.Fatalf("unexpected mapping %q %d", mapped.TextCode, mapped.Code)
	}

	mapped = integrationErrorMapper(stderrors.New("dynamics365: client id is required"))
	if mapped.TextCode != IntegrationErrorBadInput {
		t.Fatalf("expected bad input, got %q", mapped.TextCode)
	}

	external := goerrors.New("upstream 503", goerrors.CategoryExternal)
	mapped = integrationErrorMapper(external)
	if mapped.TextCode != IntegrationErrorExternalFailure || mapped.Code != http.StatusBadGateway {
		t.Fatalf("expected external envelope, got %q %d", mapped.TextCode, mapped.Code)
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrorKindNone},
		{"validation", NewValidationError("missing"), ErrorKindValidation},
		{"auth", goerrors.New("expired", goerrors.CategoryAuth), ErrorKindAPI},
		{"external", goerrors.New("boom", goerrors.CategoryExternal), ErrorKindAPI},
		{"mismatch", NewPayloadMismatchError("lead", nil, nil), ErrorKindPayloadMismatch},
		{"timeout", fmt.Errorf("post: %w", context.DeadlineExceeded), ErrorKindAPI},
		{"plain", stderrors.New("nil map"), ErrorKindInternal},
	}
	for _, tc := range cases {
		if got := ClassifyError(tc.err); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestNewPayloadMismatchErrorKeepsRedactedDiagnostics(t *testing.T) {
	err := NewPayloadMismatchError("contact", map[string]any{"lastname": "Lovelace", "secret_note": "x"}, []byte(`{"ok":true}`))
	if err.Metadata["response"] != `{"ok":true}` {
		t.Fatalf("expected raw response in metadata, got %#v", err.Metadata["response"])
	}
	payload := err.Metadata["payload"].(map[string]any)
	if payload["lastname"] != "Lovelace" || payload["secret_note"] != RedactedValue {
		t.Fatalf("unexpected payload metadata %#v", payload)
	}
	if !IsNotFound(NewIntegrationNotFoundError("crm")) || IsNotFound(err) {
		t.Fatalf("unexpected IsNotFound result")
	}
}
