package core

import (
	"context"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// BindSuffix marks a remote handle that binds the new record to an existing
// related record. Payload builders must send the value as "{collection}({id})".
const BindSuffix = "@odata.bind"

type IntegrationKind string

const (
	IntegrationKindCRM            IntegrationKind = "crm"
	IntegrationKindEmailMarketing IntegrationKind = "email_marketing"
	IntegrationKindCaptcha        IntegrationKind = "captcha"
)

type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeNumber   FieldType = "number"
	FieldTypeFloat    FieldType = "float"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeDateTime FieldType = "datetime"
)

type FieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FieldDescriptor describes one remote field a form value can be mapped onto.
// Descriptors are immutable once returned from discovery.
type FieldDescriptor struct {
	Handle   string        `json:"handle"`
	Name     string        `json:"name"`
	Type     FieldType     `json:"type"`
	Required bool          `json:"required"`
	Options  []FieldOption `json:"options,omitempty"`
}

func (f FieldDescriptor) IsReference() bool {
	return strings.HasSuffix(f.Handle, BindSuffix)
}

func (f FieldDescriptor) clone() FieldDescriptor {
	out := f
	if f.Options != nil {
		out.Options = append([]FieldOption(nil), f.Options...)
	}
	return out
}

type MarketingList struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Fields []FieldDescriptor `json:"fields,omitempty"`
}

// FormSettings is the discovered remote model for one integration. CRM
// connectors fill Entities keyed by entity kind, email marketing connectors
// fill Lists.
type FormSettings struct {
	Entities map[string][]FieldDescriptor `json:"entities,omitempty"`
	Lists    []MarketingList              `json:"lists,omitempty"`
}

func (s FormSettings) IsEmpty() bool {
	return len(s.Entities) == 0 && len(s.Lists) == 0
}

func (s FormSettings) Fields(entity string) []FieldDescriptor {
	if len(s.Entities) == 0 {
		return nil
	}
	return s.Entities[strings.TrimSpace(entity)]
}

func (s FormSettings) Clone() FormSettings {
	out := FormSettings{}
	if s.Entities != nil {
		out.Entities = make(map[string][]FieldDescriptor, len(s.Entities))
		for entity, fields := range s.Entities {
			out.Entities[entity] = cloneDescriptors(fields)
		}
	}
	if s.Lists != nil {
		out.Lists = make([]MarketingList, 0, len(s.Lists))
		for _, list := range s.Lists {
			list.Fields = cloneDescriptors(list.Fields)
			out.Lists = append(out.Lists, list)
		}
	}
	return out
}

func cloneDescriptors(fields []FieldDescriptor) []FieldDescriptor {
	if fields == nil {
		return nil
	}
	out := make([]FieldDescriptor, 0, len(fields))
	for _, field := range fields {
		out = append(out, field.clone())
	}
	return out
}

// Submission holds submitted values keyed by local form field handle.
type Submission struct {
	ID         string         `json:"id"`
	FormHandle string         `json:"form_handle"`
	Values     map[string]any `json:"values"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (s Submission) Value(handle string) (any, bool) {
	if len(s.Values) == 0 {
		return nil, false
	}
	value, ok := s.Values[strings.TrimSpace(handle)]
	return value, ok
}

// FieldMapping maps a remote descriptor handle to the local form field
// handle that supplies its value.
type FieldMapping map[string]string

func (m FieldMapping) Clone() FieldMapping {
	if m == nil {
		return nil
	}
	out := make(FieldMapping, len(m))
	for remote, local := range m {
		out[remote] = local
	}
	return out
}

type EntityMapping struct {
	Enabled bool         `json:"enabled"`
	Fields  FieldMapping `json:"fields"`
}

type DeliveryStatus string

const (
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusSuppressed DeliveryStatus = "suppressed"
	DeliveryStatusFailed     DeliveryStatus = "failed"
)

type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindValidation      ErrorKind = "validation"
	ErrorKindAPI             ErrorKind = "api"
	ErrorKindPayloadMismatch ErrorKind = "payload_mismatch"
	ErrorKindInternal        ErrorKind = "internal"
)

// DeliveryPolicy decides, per outbound write, whether the write proceeds.
// Returning false suppresses the write and every step after it.
type DeliveryPolicy interface {
	Allow(ctx context.Context, step DeliveryStep) (bool, error)
}

type DeliveryPolicyFunc func(ctx context.Context, step DeliveryStep) (bool, error)

func (f DeliveryPolicyFunc) Allow(ctx context.Context, step DeliveryStep) (bool, error) {
	if f == nil {
		return true, nil
	}
	return f(ctx, step)
}

type DeliveryStep struct {
	Integration string
	Entity      string
	Endpoint    string
	Payload     map[string]any
}

type DeliveryRequest struct {
	Submission Submission
	Policy     DeliveryPolicy
}

type DeliveryResult struct {
	Status    DeliveryStatus    `json:"status"`
	ErrorKind ErrorKind         `json:"error_kind,omitempty"`
	Err       error             `json:"-"`
	Records   map[string]string `json:"records,omitempty"`
}

func (r DeliveryResult) Succeeded() bool {
	return r.Status == DeliveryStatusDelivered || r.Status == DeliveryStatusSuppressed
}

func Delivered(records map[string]string) DeliveryResult {
	return DeliveryResult{Status: DeliveryStatusDelivered, Records: records}
}

func Suppressed(records map[string]string) DeliveryResult {
	return DeliveryResult{Status: DeliveryStatusSuppressed, Records: records}
}

func Failed(err error, records map[string]string) DeliveryResult {
	return DeliveryResult{
		Status:    DeliveryStatusFailed,
		ErrorKind: ClassifyError(err),
		Err:       err,
		Records:   records,
	}
}

type Integration interface {
	Handle() string
	ProviderID() string
	Kind() IntegrationKind
	Validate() error
}

// FormIntegration is implemented by connectors that relay submissions to a
// remote data model.
type FormIntegration interface {
	Integration
	FetchFormSettings(ctx context.Context) (FormSettings, error)
	SendPayload(ctx context.Context, req DeliveryRequest) DeliveryResult
	FetchConnection(ctx context.Context) (bool, error)
}

// FormSettingsValidator is implemented by connectors that can check their
// configured mappings against discovered settings.
type FormSettingsValidator interface {
	ValidateFormSettings(settings FormSettings) error
}

type CaptchaIntegration interface {
	Integration
	FrontEndHTML(ctx context.Context, form string) (string, error)
	ValidateSubmission(ctx context.Context, submission Submission) (bool, error)
}

// TokenSource supplies bearer tokens owned by the host credential store.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

type IntegrationEvent struct {
	ID          string         `json:"id"`
	Integration string         `json:"integration"`
	ProviderID  string         `json:"provider_id"`
	Operation   string         `json:"operation"`
	Status      string         `json:"status"`
	ErrorKind   ErrorKind      `json:"error_kind,omitempty"`
	Message     string         `json:"message,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type EventFilter struct {
	Integration string
	Operation   string
	Status      string
	Limit       int
	Offset      int
}

type EventSink interface {
	Record(ctx context.Context, event IntegrationEvent) error
}

type EventReader interface {
	List(ctx context.Context, filter EventFilter) ([]IntegrationEvent, int, error)
}

type FormSettingsSnapshot struct {
	Integration string       `json:"integration"`
	ProviderID  string       `json:"provider_id"`
	Settings    FormSettings `json:"settings"`
	FetchedAt   time.Time    `json:"fetched_at"`
}

type SettingsStore interface {
	Get(ctx context.Context, integration string) (FormSettingsSnapshot, error)
	Save(ctx context.Context, snapshot FormSettingsSnapshot) (FormSettingsSnapshot, error)
}

type IntegrationRegistry interface {
	Register(integration Integration) error
	Get(handle string) (Integration, bool)
	List() []Integration
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
