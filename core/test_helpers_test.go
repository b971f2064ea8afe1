package core

import (
	"context"
	"fmt"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

type fakeFormIntegration struct {
	handle      string
	providerID  string
	validateErr error

	settings    FormSettings
	settingsErr error

	result    DeliveryResult
	connected bool
	connErr   error

	mu           sync.Mutex
	fetchCalls   int
	sendRequests []DeliveryRequest
}

func (f *fakeFormIntegration) Handle() string        { return f.handle }
func (f *fakeFormIntegration) ProviderID() string    { return f.providerID }
func (f *fakeFormIntegration) Kind() IntegrationKind { return IntegrationKindCRM }
func (f *fakeFormIntegration) Validate() error       { return f.validateErr }

func (f *fakeFormIntegration) FetchFormSettings(context.Context) (FormSettings, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	return f.settings.Clone(), f.settingsErr
}

func (f *fakeFormIntegration) SendPayload(ctx context.Context, req DeliveryRequest) DeliveryResult {
	f.mu.Lock()
	f.sendRequests = append(f.sendRequests, req)
	f.mu.Unlock()
	allowed, err := AllowStep(ctx, req.Policy, DeliveryStep{Integration: f.handle, Entity: "contact"})
	if err != nil {
		return Failed(err, nil)
	}
	if !allowed {
		return Suppressed(nil)
	}
	return f.result
}

func (f *fakeFormIntegration) FetchConnection(context.Context) (bool, error) {
	return f.connected, f.connErr
}

type mappingValidatingIntegration struct {
	*fakeFormIntegration
	mapping FieldMapping
}

func (m *mappingValidatingIntegration) ValidateFormSettings(settings FormSettings) error {
	return ValidateFieldMapping("contact", m.mapping, settings.Fields("contact"))
}

type fakeCaptcha struct {
	handle string
	html   string
	valid  bool
}

func (f fakeCaptcha) Handle() string        { return f.handle }
func (f fakeCaptcha) ProviderID() string    { return "captcha" }
func (f fakeCaptcha) Kind() IntegrationKind { return IntegrationKindCaptcha }
func (f fakeCaptcha) Validate() error       { return nil }

func (f fakeCaptcha) FrontEndHTML(context.Context, string) (string, error) {
	return f.html, nil
}

func (f fakeCaptcha) ValidateSubmission(context.Context, Submission) (bool, error) {
	return f.valid, nil
}

type memoryEventSink struct {
	mu     sync.Mutex
	events []IntegrationEvent
}

func (m *memoryEventSink) Record(_ context.Context, event IntegrationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = fmt.Sprintf("evt_%d", len(m.events)+1)
	m.events = append(m.events, event)
	return nil
}

func (m *memoryEventSink) List(_ context.Context, filter EventFilter) ([]IntegrationEvent, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []IntegrationEvent{}
	for _, event := range m.events {
		if filter.Integration != "" && event.Integration != filter.Integration {
			continue
		}
		if filter.Operation != "" && event.Operation != filter.Operation {
			continue
		}
		out = append(out, event)
	}
	return out, len(out), nil
}

func (m *memoryEventSink) snapshot() []IntegrationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]IntegrationEvent(nil), m.events...)
}

type memorySettingsStore struct {
	mu        sync.Mutex
	snapshots map[string]FormSettingsSnapshot
	saves     int
}

func newMemorySettingsStore() *memorySettingsStore {
	return &memorySettingsStore{snapshots: map[string]FormSettingsSnapshot{}}
}

func (m *memorySettingsStore) Get(_ context.Context, integration string) (FormSettingsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot, ok := m.snapshots[integration]
	if !ok {
		return FormSettingsSnapshot{}, goerrors.New("settings not found", goerrors.CategoryNotFound)
	}
	return snapshot, nil
}

func (m *memorySettingsStore) Save(_ context.Context, snapshot FormSettingsSnapshot) (FormSettingsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.snapshots[snapshot.Integration] = snapshot
	return snapshot, nil
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

func contactSettings() FormSettings {
	return FormSettings{Entities: map[string][]FieldDescriptor{
		"contact": {
			{Handle: "emailaddress1", Name: "Email", Type: FieldTypeString, Required: true},
			{Handle: "lastname", Name: "Last Name", Type: FieldTypeString, Required: true},
			{Handle: "numberofchildren", Name: "Children", Type: FieldTypeNumber},
		},
	}}
}

func newTestService(t interface{ Fatalf(string, ...any) }, cfg Config, opts ...Option) *Service {
	svc, err := NewService(cfg, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
