package devkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-form-integrations/transport"
)

type TransportScript struct {
	Response transport.Response
	Err      error
}

// JSON scripts a response with a JSON encoded body.
func JSON(status int, body any) TransportScript {
	payload, err := json.Marshal(body)
	if err != nil {
		return TransportScript{Err: fmt.Errorf("devkit: encode scripted body: %w", err)}
	}
	return TransportScript{Response: transport.Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       payload,
	}}
}

// Status scripts an empty response with the given status.
func Status(status int) TransportScript {
	return TransportScript{Response: transport.Response{StatusCode: status, Headers: map[string]string{}}}
}

// FakeTransportAdapter replays scripted responses keyed by "METHOD resource",
// where resource is the request URL with BaseURL stripped. A route matches
// on the full resource first and on its path without query second. The last
// script of a route repeats once the others are consumed.
type FakeTransportAdapter struct {
	BaseURL string

	mu       sync.Mutex
	routes   map[string][]TransportScript
	served   map[string]int
	requests []transport.Request
}

func NewFakeTransportAdapter(baseURL string) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		BaseURL: strings.TrimSpace(baseURL),
		routes:  map[string][]TransportScript{},
		served:  map[string]int{},
	}
}

func (a *FakeTransportAdapter) On(method string, resource string, scripts ...TransportScript) *FakeTransportAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := routeKey(method, resource)
	a.routes[key] = append(a.routes[key], scripts...)
	return a
}

func (a *FakeTransportAdapter) Do(_ context.Context, req transport.Request) (transport.Response, error) {
	if a == nil {
		return transport.Response{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneRequest(req))
	resource := a.resource(req.URL)
	key := routeKey(req.Method, resource)
	scripts, ok := a.routes[key]
	if !ok {
		path, _, _ := strings.Cut(resource, "?")
		key = routeKey(req.Method, path)
		scripts, ok = a.routes[key]
	}
	if !ok || len(scripts) == 0 {
		return transport.Response{
			StatusCode: http.StatusNotFound,
			Headers:    map[string]string{},
			Body:       []byte(`{"error":"no scripted route for ` + routeKey(req.Method, resource) + `"}`),
		}, nil
	}
	index := a.served[key]
	a.served[key] = index + 1
	if index >= len(scripts) {
		index = len(scripts) - 1
	}
	script := scripts[index]
	return cloneResponse(script.Response), script.Err
}

func (a *FakeTransportAdapter) Requests() []transport.Request {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]transport.Request, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneRequest(item))
	}
	return out
}

// Resources lists "METHOD resource" for every request in order.
func (a *FakeTransportAdapter) Resources() []string {
	requests := a.Requests()
	out := make([]string, 0, len(requests))
	for _, req := range requests {
		out = append(out, routeKey(req.Method, a.resource(req.URL)))
	}
	return out
}

// Count returns how many requests hit the given method and resource path.
func (a *FakeTransportAdapter) Count(method string, resource string) int {
	want := routeKey(method, resource)
	count := 0
	for _, got := range a.Resources() {
		path, _, _ := strings.Cut(got, "?")
		if got == want || path == want {
			count++
		}
	}
	return count
}

func (a *FakeTransportAdapter) resource(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if a.BaseURL != "" {
		rawURL = strings.TrimPrefix(rawURL, a.BaseURL)
	}
	return rawURL
}

func routeKey(method string, resource string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + strings.TrimSpace(resource)
}

func cloneRequest(in transport.Request) transport.Request {
	out := in
	out.Headers = map[string]string{}
	out.Query = map[string]string{}
	out.Body = append([]byte(nil), in.Body...)
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	return out
}

func cloneResponse(in transport.Response) transport.Response {
	out := transport.Response{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ transport.Adapter = (*FakeTransportAdapter)(nil)
