package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	registry        IntegrationRegistry
	eventSink       EventSink
	settingsStore   SettingsStore
	deliveryPolicy  DeliveryPolicy
	clock           func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Registry        IntegrationRegistry
	EventSink       EventSink
	SettingsStore   SettingsStore
	DeliveryPolicy  DeliveryPolicy
}

type FetchFormSettingsRequest struct {
	Handle  string
	Refresh bool
}

type SendSubmissionRequest struct {
	Handle     string
	Submission Submission
	Policy     DeliveryPolicy
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("integrations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("integrations"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewRegistry()
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	policies := make([]DeliveryPolicy, 0, len(builder.deliveryPolicies)+1)
	if finalConfig.Delivery.DryRun {
		policies = append(policies, DryRunPolicy{})
	}
	policies = append(policies, builder.deliveryPolicies...)

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		registry:        builder.registry,
		eventSink:       builder.eventSink,
		settingsStore:   builder.settingsStore,
		deliveryPolicy:  ChainPolicies(policies...),
		clock:           builder.clock,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Registry:        s.registry,
		EventSink:       s.eventSink,
		SettingsStore:   s.settingsStore,
		DeliveryPolicy:  s.deliveryPolicy,
	}
}

func (s *Service) Register(integration Integration) error {
	if s == nil || s.registry == nil {
		return fmt.Errorf("core: service registry is not configured")
	}
	if err := s.registry.Register(integration); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) Integration(handle string) (Integration, error) {
	if s == nil || s.registry == nil {
		return nil, NewIntegrationNotFoundError(handle)
	}
	integration, ok := s.registry.Get(handle)
	if !ok || integration == nil {
		return nil, NewIntegrationNotFoundError(handle)
	}
	return integration, nil
}

func (s *Service) ValidateIntegration(_ context.Context, handle string) error {
	integration, err := s.Integration(handle)
	if err != nil {
		return err
	}
	if err := integration.Validate(); err != nil {
		return s.mapError(err)
	}
	return nil
}

// FetchFormSettings returns the stored settings snapshot for an integration,
// discovering it from the remote API when none is stored or when a refresh
// is requested. Discovery failures return whatever settings are available
// together with the error.
func (s *Service) FetchFormSettings(ctx context.Context, req FetchFormSettingsRequest) (settings FormSettings, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"integration": strings.TrimSpace(req.Handle), "refresh": req.Refresh}
	defer func() {
		s.observeOperation(ctx, startedAt, "fetch_form_settings", err, fields)
	}()

	integration, err := s.formIntegration(req.Handle, "form settings")
	if err != nil {
		return FormSettings{}, err
	}
	fields["provider_id"] = integration.ProviderID()

	var stored FormSettingsSnapshot
	hasStored := false
	if s.settingsStore != nil {
		snapshot, getErr := s.settingsStore.Get(ctx, integration.Handle())
		switch {
		case getErr == nil:
			stored, hasStored = snapshot, true
		case IsNotFound(getErr):
		default:
			s.logWarn(ctx, "form settings snapshot unavailable", map[string]any{
				"integration": integration.Handle(),
				"error":       getErr.Error(),
			})
		}
	}
	if hasStored && !req.Refresh {
		fields["source"] = "store"
		return stored.Settings.Clone(), nil
	}
	fields["source"] = "remote"

	if err = integration.Validate(); err != nil {
		err = s.mapError(err)
		s.recordEvent(ctx, integration, "fetch_form_settings", "failure", err, nil)
		return stored.Settings.Clone(), err
	}

	settings, err = integration.FetchFormSettings(ctx)
	if err != nil {
		err = s.mapError(err)
		s.recordEvent(ctx, integration, "fetch_form_settings", "failure", err, nil)
		if hasStored {
			return stored.Settings.Clone(), err
		}
		return settings, err
	}

	if s.settingsStore != nil {
		_, saveErr := s.settingsStore.Save(ctx, FormSettingsSnapshot{
			Integration: integration.Handle(),
			ProviderID:  integration.ProviderID(),
			Settings:    settings.Clone(),
			FetchedAt:   s.now(),
		})
		if saveErr != nil {
			err = s.mapError(saveErr)
			return settings, err
		}
	}
	s.recordEvent(ctx, integration, "fetch_form_settings", "success", nil, map[string]any{
		"entities": len(settings.Entities),
		"lists":    len(settings.Lists),
	})
	return settings, nil
}

// SendSubmission relays a submission through the named integration. Every
// failure is reported in the result; the call itself never errors.
func (s *Service) SendSubmission(ctx context.Context, req SendSubmissionRequest) (result DeliveryResult) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"integration":   strings.TrimSpace(req.Handle),
		"submission_id": strings.TrimSpace(req.Submission.ID),
		"form_handle":   strings.TrimSpace(req.Submission.FormHandle),
	}
	defer func() {
		fields["status"] = string(result.Status)
		s.observeOperation(ctx, startedAt, "send_payload", result.Err, fields)
	}()

	integration, err := s.formIntegration(req.Handle, "payload delivery")
	if err != nil {
		return Failed(err, nil)
	}
	fields["provider_id"] = integration.ProviderID()

	if err := s.validateForDelivery(ctx, integration); err != nil {
		err = s.mapError(err)
		s.recordEvent(ctx, integration, "send_payload", string(DeliveryStatusFailed), err, s.submissionMetadata(req.Submission))
		return Failed(err, nil)
	}

	result = integration.SendPayload(ctx, DeliveryRequest{
		Submission: req.Submission,
		Policy:     ChainPolicies(s.deliveryPolicy, req.Policy),
	})
	if result.Status == "" {
		result.Status = DeliveryStatusDelivered
		if result.Err != nil {
			result.Status = DeliveryStatusFailed
		}
	}
	if result.Err != nil {
		result.Err = s.mapError(result.Err)
		if result.ErrorKind == ErrorKindNone {
			result.ErrorKind = ClassifyError(result.Err)
		}
	}

	metadata := s.submissionMetadata(req.Submission)
	if len(result.Records) > 0 {
		metadata["records"] = copyStringMap(result.Records)
	}
	s.recordEvent(ctx, integration, "send_payload", string(result.Status), result.Err, metadata)
	return result
}

func (s *Service) validateForDelivery(ctx context.Context, integration FormIntegration) error {
	if err := integration.Validate(); err != nil {
		return err
	}
	validator, ok := integration.(FormSettingsValidator)
	if !ok || s.settingsStore == nil {
		return nil
	}
	snapshot, err := s.settingsStore.Get(ctx, integration.Handle())
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	return validator.ValidateFormSettings(snapshot.Settings)
}

func (s *Service) CheckConnection(ctx context.Context, handle string) (connected bool, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"integration": strings.TrimSpace(handle)}
	defer func() {
		fields["connected"] = connected
		s.observeOperation(ctx, startedAt, "fetch_connection", err, fields)
	}()

	integration, err := s.formIntegration(handle, "connection check")
	if err != nil {
		return false, err
	}
	fields["provider_id"] = integration.ProviderID()
	if err = integration.Validate(); err != nil {
		err = s.mapError(err)
		return false, err
	}
	connected, err = integration.FetchConnection(ctx)
	if err != nil {
		err = s.mapError(err)
		s.recordEvent(ctx, integration, "fetch_connection", "failure", err, nil)
		return false, err
	}
	return connected, nil
}

func (s *Service) RenderCaptcha(ctx context.Context, handle string, form string) (html string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"integration": strings.TrimSpace(handle), "form_handle": strings.TrimSpace(form)}
	defer func() {
		s.observeOperation(ctx, startedAt, "render_captcha", err, fields)
	}()

	captcha, err := s.captchaIntegration(handle)
	if err != nil {
		return "", err
	}
	fields["provider_id"] = captcha.ProviderID()
	html, err = captcha.FrontEndHTML(ctx, form)
	if err != nil {
		err = s.mapError(err)
		return "", err
	}
	return html, nil
}

func (s *Service) ValidateCaptcha(ctx context.Context, handle string, submission Submission) (valid bool, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"integration":   strings.TrimSpace(handle),
		"submission_id": strings.TrimSpace(submission.ID),
	}
	defer func() {
		fields["valid"] = valid
		s.observeOperation(ctx, startedAt, "validate_captcha", err, fields)
	}()

	captcha, err := s.captchaIntegration(handle)
	if err != nil {
		return false, err
	}
	fields["provider_id"] = captcha.ProviderID()
	valid, err = captcha.ValidateSubmission(ctx, submission)
	if err != nil {
		err = s.mapError(err)
		return false, err
	}
	return valid, nil
}

func (s *Service) ListEvents(ctx context.Context, filter EventFilter) ([]IntegrationEvent, int, error) {
	if s == nil || s.eventSink == nil {
		return nil, 0, s.mapError(fmt.Errorf("core: event sink is not configured"))
	}
	reader, ok := s.eventSink.(EventReader)
	if !ok {
		return nil, 0, NewCapabilityUnsupportedError("events", "listing")
	}
	events, total, err := reader.List(ctx, filter)
	if err != nil {
		return nil, 0, s.mapError(err)
	}
	return events, total, nil
}

func (s *Service) formIntegration(handle string, capability string) (FormIntegration, error) {
	integration, err := s.Integration(handle)
	if err != nil {
		return nil, err
	}
	form, ok := integration.(FormIntegration)
	if !ok {
		return nil, NewCapabilityUnsupportedError(handle, capability)
	}
	return form, nil
}

func (s *Service) captchaIntegration(handle string) (CaptchaIntegration, error) {
	integration, err := s.Integration(handle)
	if err != nil {
		return nil, err
	}
	captcha, ok := integration.(CaptchaIntegration)
	if !ok {
		return nil, NewCapabilityUnsupportedError(handle, "captcha")
	}
	return captcha, nil
}

func (s *Service) recordEvent(
	ctx context.Context,
	integration Integration,
	operation string,
	status string,
	err error,
	metadata map[string]any,
) {
	if s == nil || s.eventSink == nil || integration == nil {
		return
	}
	event := IntegrationEvent{
		Integration: integration.Handle(),
		ProviderID:  integration.ProviderID(),
		Operation:   operation,
		Status:      status,
		Metadata:    RedactSensitiveMap(metadata),
		CreatedAt:   s.now(),
	}
	if err != nil {
		event.ErrorKind = ClassifyError(err)
		event.Message = err.Error()
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && len(richErr.Metadata) > 0 {
			event.Metadata["error"] = RedactSensitiveMap(richErr.Metadata)
		}
	}
	if recordErr := s.eventSink.Record(ctx, event); recordErr != nil {
		s.logWarn(ctx, "integration event not recorded", map[string]any{
			"integration": integration.Handle(),
			"operation":   operation,
			"error":       recordErr.Error(),
		})
	}
}

func (s *Service) submissionMetadata(submission Submission) map[string]any {
	metadata := map[string]any{
		"submission_id": submission.ID,
		"form_handle":   submission.FormHandle,
	}
	if s.config.Delivery.RecordPayloads && len(submission.Values) > 0 {
		metadata["values"] = cloneFields(submission.Values)
	}
	return metadata
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func copyStringMap(source map[string]string) map[string]any {
	out := make(map[string]any, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}
