package query

import (
	"strings"

	"github.com/goliatone/go-form-integrations/core"
)

const (
	TypeFetchFormSettings     = "integrations.query.form_settings.fetch"
	TypeCheckConnection       = "integrations.query.connection.check"
	TypeListIntegrationEvents = "integrations.query.events.list"
	TypeRenderCaptcha         = "integrations.query.captcha.render"
	TypeValidateCaptcha       = "integrations.query.captcha.validate"
)

const maxEventPageSize = 500

type FetchFormSettingsMessage struct {
	Handle string
}

func (FetchFormSettingsMessage) Type() string { return TypeFetchFormSettings }

func (m FetchFormSettingsMessage) Validate() error {
	return requireHandle(m.Handle)
}

type CheckConnectionMessage struct {
	Handle string
}

func (CheckConnectionMessage) Type() string { return TypeCheckConnection }

func (m CheckConnectionMessage) Validate() error {
	return requireHandle(m.Handle)
}

type ListIntegrationEventsMessage struct {
	Filter core.EventFilter
}

func (ListIntegrationEventsMessage) Type() string { return TypeListIntegrationEvents }

func (m ListIntegrationEventsMessage) Validate() error {
	if m.Filter.Offset < 0 {
		return queryValidationError("offset", "offset must be >= 0")
	}
	if m.Filter.Limit < 0 || m.Filter.Limit > maxEventPageSize {
		return queryValidationError("limit", "limit must be between 0 and 500")
	}
	return nil
}

type RenderCaptchaMessage struct {
	Handle string
	Form   string
}

func (RenderCaptchaMessage) Type() string { return TypeRenderCaptcha }

func (m RenderCaptchaMessage) Validate() error {
	return requireHandle(m.Handle)
}

type ValidateCaptchaMessage struct {
	Handle     string
	Submission core.Submission
}

func (ValidateCaptchaMessage) Type() string { return TypeValidateCaptcha }

func (m ValidateCaptchaMessage) Validate() error {
	return requireHandle(m.Handle)
}

func requireHandle(handle string) error {
	if strings.TrimSpace(handle) == "" {
		return queryValidationError("handle", "integration handle is required")
	}
	return nil
}
