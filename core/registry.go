package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds configured integrations keyed by handle. A provider may
// back several integrations with different configurations.
type Registry struct {
	mu           sync.RWMutex
	integrations map[string]Integration
}

func NewRegistry() *Registry {
	return &Registry{integrations: make(map[string]Integration)}
}

func (r *Registry) Register(integration Integration) error {
	if integration == nil {
		return fmt.Errorf("core: integration is nil")
	}
	handle := strings.TrimSpace(integration.Handle())
	if handle == "" {
		return fmt.Errorf("core: integration handle is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.integrations[handle]; exists {
		return fmt.Errorf("core: integration already registered: %s", handle)
	}
	r.integrations[handle] = integration
	return nil
}

func (r *Registry) Get(handle string) (Integration, bool) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, false
	}
	r.mu.RLock()
	integration, ok := r.integrations[handle]
	r.mu.RUnlock()
	return integration, ok
}

func (r *Registry) List() []Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]string, 0, len(r.integrations))
	for handle := range r.integrations {
		handles = append(handles, handle)
	}
	sort.Strings(handles)
	out := make([]Integration, 0, len(handles))
	for _, handle := range handles {
		out = append(out, r.integrations[handle])
	}
	return out
}
