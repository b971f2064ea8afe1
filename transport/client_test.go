package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-form-integrations/core"
)

func TestClient_ResolvesPathsAgainstBaseURL(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-MailerLite-ApiKey")
		_, _ = w.Write([]byte(`[{"id":1,"name":"Newsletter"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/api/data/v9.0/", NewRESTAdapter(server.Client()),
		WithHeader("X-MailerLite-ApiKey", "key"),
	)
	var groups []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	err := client.GetJSON(context.Background(), "EntityDefinitions(LogicalName='contact')?$select=Attributes", &groups)
	if err != nil {
		t.Fatalf("get json: %v", err)
	}
	if gotPath != "/api/data/v9.0/EntityDefinitions(LogicalName='contact')" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotQuery != "$select=Attributes" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if gotKey != "key" {
		t.Fatalf("expected default header, got %q", gotKey)
	}
	if len(groups) != 1 || groups[0].Name != "Newsletter" {
		t.Fatalf("unexpected decode %#v", groups)
	}
}

func TestClient_NonSuccessStatusBecomesCategorizedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"0x80072560","message":"token expired"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", NewRESTAdapter(server.Client()))
	res, err := client.Get(context.Background(), "contacts?$top=1")
	if err == nil {
		t.Fatalf("expected unauthorized error")
	}
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected response returned with error, got %d", res.StatusCode)
	}
	if !IsUnauthorized(err) {
		t.Fatalf("expected IsUnauthorized to detect 401")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope")
	}
	if rich.Category != goerrors.CategoryAuth || rich.TextCode != core.IntegrationErrorUnauthorized {
		t.Fatalf("unexpected envelope %q %q", rich.Category, rich.TextCode)
	}
	if core.ClassifyError(err) != core.ErrorKindAPI {
		t.Fatalf("expected api error kind")
	}
}

func TestClient_ServerErrorIsExternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", NewRESTAdapter(server.Client()))
	_, err := client.PostJSON(context.Background(), "leads", map[string]any{"subject": "x"}, nil)
	if RemoteStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected remote status 400, got %d", RemoteStatus(err))
	}
	if IsUnauthorized(err) {
		t.Fatalf("did not expect unauthorized")
	}
	if core.ClassifyError(err) != core.ErrorKindAPI {
		t.Fatalf("expected api error kind for remote 400")
	}
}

func TestDecodeJSON_InvalidBody(t *testing.T) {
	var out map[string]any
	err := DecodeJSON(Response{StatusCode: 200, Body: []byte("<html>")}, &out)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if err := DecodeJSON(Response{StatusCode: 204}, &out); err != nil {
		t.Fatalf("expected empty body to decode as no-op, got %v", err)
	}
}
