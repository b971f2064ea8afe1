package core

import "testing"

func TestRegistry_ListDeterministicOrder(t *testing.T) {
	registry := NewRegistry()
	for _, handle := range []string{"zeta", "alpha", "beta"} {
		if err := registry.Register(fakeCaptcha{handle: handle}); err != nil {
			t.Fatalf("register integration: %v", err)
		}
	}

	listed := registry.List()
	got := []string{listed[0].Handle(), listed[1].Handle(), listed[2].Handle()}
	want := []string{"alpha", "beta", "zeta"}
	for idx := range want {
		if got[idx] != want[idx] {
			t.Fatalf("unexpected ordering at index %d: got %v want %v", idx, got, want)
		}
	}
}

func TestRegistry_RejectsDuplicateAndBlankHandles(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(fakeCaptcha{handle: "snaptcha"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(fakeCaptcha{handle: " snaptcha "}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register(fakeCaptcha{handle: " "}); err == nil {
		t.Fatalf("expected blank handle to fail")
	}
	if err := registry.Register(nil); err == nil {
		t.Fatalf("expected nil integration to fail")
	}
	if _, ok := registry.Get("snaptcha"); !ok {
		t.Fatalf("expected registered integration")
	}
}
