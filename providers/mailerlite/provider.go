package mailerlite

import (
	"context"
	"fmt"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/transport"
)

var fieldTypes = map[string]core.FieldType{
	"NUMBER": core.FieldTypeNumber,
	"DATE":   core.FieldTypeDateTime,
}

// Provider subscribes form submitters to a MailerLite group.
type Provider struct {
	config Config
	logger core.Logger
	client *transport.Client

	mu       sync.RWMutex
	settings core.FormSettings
}

func New(cfg Config) (*Provider, error) {
	cfg.Handle = strings.TrimSpace(cfg.Handle)
	if cfg.Handle == "" {
		cfg.Handle = ProviderID
	}
	cfg.ListID = strings.TrimSpace(cfg.ListID)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	client := transport.NewClient(cfg.BaseURL, cfg.Adapter,
		transport.WithHeader(APIKeyHeader, strings.TrimSpace(cfg.APIKey)),
		transport.WithHeader("Content-Type", "application/json"),
		transport.WithHeader("Accept", "application/json"),
		transport.WithTimeout(cfg.Timeout),
		transport.WithMaxResponseBodyBytes(cfg.MaxResponseBodyBytes),
		transport.WithThrottle(cfg.Throttle),
	)
	return &Provider{
		config:   cfg,
		logger:   glog.Ensure(cfg.Logger),
		client:   client,
		settings: cfg.Settings.Clone(),
	}, nil
}

func (p *Provider) Handle() string             { return p.config.Handle }
func (p *Provider) ProviderID() string         { return ProviderID }
func (p *Provider) Kind() core.IntegrationKind { return core.IntegrationKindEmailMarketing }

func (p *Provider) Validate() error {
	return p.config.Validate()
}

// ValidateFormSettings checks that the configured list exists and that its
// required fields are mapped.
func (p *Provider) ValidateFormSettings(settings core.FormSettings) error {
	if p.config.ListID == "" {
		return core.NewValidationError("providers/mailerlite: list is required",
			goerrors.FieldError{Field: "list_id", Message: "a list must be selected"},
		)
	}
	if len(settings.Lists) == 0 {
		return nil
	}
	list, ok := findList(settings, p.config.ListID)
	if !ok {
		return core.NewValidationError("providers/mailerlite: list not found",
			goerrors.FieldError{Field: "list_id", Message: "list " + p.config.ListID + " does not exist"},
		)
	}
	return core.ValidateFieldMapping("list", p.config.FieldMapping, list.Fields)
}

type group struct {
	ID   any    `json:"id"`
	Name string `json:"name"`
}

type field struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// FetchFormSettings lists every subscriber group. Custom fields are account
// wide, so every list carries the same fields.
func (p *Provider) FetchFormSettings(ctx context.Context) (core.FormSettings, error) {
	settings := core.FormSettings{Lists: []core.MarketingList{}}
	if err := p.Validate(); err != nil {
		return settings, err
	}

	var groups []group
	if err := p.client.GetJSON(ctx, "groups", &groups); err != nil {
		p.logFailure(ctx, "mailerlite list discovery failed", err)
		return settings, err
	}
	var fields []field
	if len(groups) > 0 {
		if err := p.client.GetJSON(ctx, "fields", &fields); err != nil {
			p.logFailure(ctx, "mailerlite field discovery failed", err)
			return settings, err
		}
	}

	descriptors := make([]core.FieldDescriptor, 0, len(fields))
	for _, item := range fields {
		key := strings.TrimSpace(item.Key)
		if key == "" {
			continue
		}
		fieldType, ok := fieldTypes[strings.ToUpper(strings.TrimSpace(item.Type))]
		if !ok {
			fieldType = core.FieldTypeString
		}
		descriptors = append(descriptors, core.FieldDescriptor{
			Handle:   key,
			Name:     strings.TrimSpace(item.Title),
			Type:     fieldType,
			Required: key == FieldEmail,
		})
	}
	for _, item := range groups {
		settings.Lists = append(settings.Lists, core.MarketingList{
			ID:     idString(item.ID),
			Name:   strings.TrimSpace(item.Name),
			Fields: append([]core.FieldDescriptor(nil), descriptors...),
		})
	}

	p.mu.Lock()
	p.settings = settings.Clone()
	p.mu.Unlock()
	return settings, nil
}

// SendPayload adds the submitter to the configured list. Email and name are
// sent top level and every other mapped value under fields.
func (p *Provider) SendPayload(ctx context.Context, req core.DeliveryRequest) core.DeliveryResult {
	records := map[string]string{}
	if err := p.Validate(); err != nil {
		return core.Failed(err, records)
	}
	if p.config.ListID == "" {
		return core.Failed(core.NewValidationError("providers/mailerlite: list is required",
			goerrors.FieldError{Field: "list_id", Message: "a list must be selected"},
		), records)
	}

	var listFields []core.FieldDescriptor
	p.mu.RLock()
	if list, ok := findList(p.settings, p.config.ListID); ok {
		listFields = list.Fields
	}
	p.mu.RUnlock()

	values, err := core.MapSubmissionValues(req.Submission, p.config.FieldMapping, listFields)
	if err != nil {
		return core.Failed(err, records)
	}
	payload, err := BuildSubscriberPayload(values)
	if err != nil {
		return core.Failed(err, records)
	}

	endpoint := "groups/" + p.config.ListID + "/subscribers"
	allowed, err := core.AllowStep(ctx, req.Policy, core.DeliveryStep{
		Integration: p.Handle(),
		Entity:      "subscriber",
		Endpoint:    endpoint,
		Payload:     payload,
	})
	if err != nil {
		return core.Failed(err, records)
	}
	if !allowed {
		return core.Suppressed(records)
	}

	res, err := p.client.PostJSON(ctx, endpoint, payload, nil)
	if err != nil {
		p.logFailure(ctx, "mailerlite subscribe failed", err)
		return core.Failed(err, records)
	}
	var created map[string]any
	if err := transport.DecodeJSON(res, &created); err != nil {
		return core.Failed(err, records)
	}
	id := idString(created["id"])
	if id == "" {
		p.logger.WithContext(ctx).Error("mailerlite subscribe response missing identifier",
			"integration", p.Handle(),
			"list_id", p.config.ListID,
			"response", string(res.Body),
		)
		return core.Failed(core.NewPayloadMismatchError("subscriber", payload, res.Body), records)
	}
	records["subscriber"] = id
	return core.Delivered(records)
}

// FetchConnection checks the API key against the account endpoint.
func (p *Provider) FetchConnection(ctx context.Context) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	var me struct {
		Account struct {
			ID any `json:"id"`
		} `json:"account"`
	}
	res, err := p.client.Get(ctx, "me")
	if err == nil {
		err = transport.DecodeJSON(res, &me)
	}
	if err != nil {
		p.logFailure(ctx, "mailerlite connection check failed", err)
		return false, err
	}
	if idString(me.Account.ID) == "" {
		return false, core.NewPayloadMismatchError("account", nil, res.Body)
	}
	return true, nil
}

// BuildSubscriberPayload splits mapped values into the subscriber envelope.
// The email value is mandatory.
func BuildSubscriberPayload(values map[string]any) (map[string]any, error) {
	fields := make(map[string]any, len(values))
	for key, value := range values {
		fields[key] = value
	}
	email := strings.TrimSpace(fmt.Sprint(fields[FieldEmail]))
	if _, ok := fields[FieldEmail]; !ok || email == "" {
		return nil, core.NewValidationError("providers/mailerlite: subscriber email is required",
			goerrors.FieldError{Field: FieldEmail, Message: "email must be mapped and submitted"},
		)
	}
	delete(fields, FieldEmail)

	payload := map[string]any{
		"email":       email,
		"fields":      fields,
		"resubscribe": true,
	}
	if name, ok := fields[FieldName]; ok {
		payload["name"] = name
		delete(fields, FieldName)
	}
	return payload, nil
}

func (p *Provider) logFailure(ctx context.Context, message string, err error) {
	p.logger.WithContext(ctx).Error(message,
		"integration", p.Handle(),
		"list_id", p.config.ListID,
		"error", err,
	)
}

func findList(settings core.FormSettings, id string) (core.MarketingList, bool) {
	for _, list := range settings.Lists {
		if list.ID == id {
			return list, true
		}
	}
	return core.MarketingList{}, false
}

// idString renders numeric ids without exponent notation.
func idString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return fmt.Sprintf("%.0f", typed)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

var (
	_ core.FormIntegration       = (*Provider)(nil)
	_ core.FormSettingsValidator = (*Provider)(nil)
)
