package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_ThrottleRefusesCallBeforeSending(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	refused := errors.New("throttled")
	throttle := &stubThrottle{before: refused}
	client := NewClient(server.URL, NewRESTAdapter(server.Client()), WithThrottle(throttle))
	if _, err := client.Get(context.Background(), "contacts"); !errors.Is(err, refused) {
		t.Fatalf("expected throttle error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no request to be sent, got %d", calls)
	}
}

func TestClient_ThrottleObservesErrorResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	throttle := &stubThrottle{}
	client := NewClient(server.URL, NewRESTAdapter(server.Client()), WithThrottle(throttle))
	_, err := client.Get(context.Background(), "contacts")
	if err == nil {
		t.Fatalf("expected rate limited error")
	}
	if throttle.observed != http.StatusTooManyRequests {
		t.Fatalf("expected throttle to observe the 429, got %d", throttle.observed)
	}
	wait, ok := RetryAfterDelay(err)
	if !ok || wait != 12*time.Second {
		t.Fatalf("expected retry after of 12s on the error, got %s ok=%v", wait, ok)
	}
}

func TestRetryAfter_ParsesSecondsAndDates(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)
	if wait, ok := RetryAfter(map[string]string{"retry-after": "5"}, now); !ok || wait != 5*time.Second {
		t.Fatalf("expected 5s, got %s ok=%v", wait, ok)
	}
	date := now.Add(time.Minute).Format(time.RFC1123)
	if wait, ok := RetryAfter(map[string]string{"Retry-After": date}, now); !ok || wait != time.Minute {
		t.Fatalf("expected 1m, got %s ok=%v", wait, ok)
	}
	if _, ok := RetryAfter(map[string]string{"Retry-After": "0"}, now); ok {
		t.Fatalf("expected zero wait to be ignored")
	}
	if _, ok := RetryAfter(nil, now); ok {
		t.Fatalf("expected missing header to be ignored")
	}
}

type stubThrottle struct {
	before   error
	observed int
}

func (s *stubThrottle) BeforeCall(context.Context) error { return s.before }

func (s *stubThrottle) AfterCall(_ context.Context, res Response) error {
	s.observed = res.StatusCode
	return nil
}
