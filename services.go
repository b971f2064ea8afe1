package integrations

import "github.com/goliatone/go-form-integrations/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Integration = core.Integration
type FormIntegration = core.FormIntegration
type CaptchaIntegration = core.CaptchaIntegration
type FormSettings = core.FormSettings
type FieldDescriptor = core.FieldDescriptor
type FieldMapping = core.FieldMapping
type EntityMapping = core.EntityMapping
type Submission = core.Submission
type DeliveryResult = core.DeliveryResult
type DeliveryPolicy = core.DeliveryPolicy
type TokenSource = core.TokenSource

type SendSubmissionRequest = core.SendSubmissionRequest

type FetchFormSettingsRequest = core.FetchFormSettingsRequest

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithRegistry        = core.WithRegistry
	WithEventSink       = core.WithEventSink
	WithSettingsStore   = core.WithSettingsStore
	WithDeliveryPolicy  = core.WithDeliveryPolicy
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
