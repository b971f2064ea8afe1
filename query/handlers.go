package query

import (
	"context"

	"github.com/goliatone/go-form-integrations/core"
)

type FormSettingsReader interface {
	FetchFormSettings(ctx context.Context, req core.FetchFormSettingsRequest) (core.FormSettings, error)
}

type ConnectionChecker interface {
	CheckConnection(ctx context.Context, handle string) (bool, error)
}

type EventLister interface {
	ListEvents(ctx context.Context, filter core.EventFilter) ([]core.IntegrationEvent, int, error)
}

type CaptchaService interface {
	RenderCaptcha(ctx context.Context, handle string, form string) (string, error)
	ValidateCaptcha(ctx context.Context, handle string, submission core.Submission) (bool, error)
}

type EventPage struct {
	Items []core.IntegrationEvent `json:"items"`
	Total int                     `json:"total"`
}

type FetchFormSettingsQuery struct {
	reader FormSettingsReader
}

func NewFetchFormSettingsQuery(reader FormSettingsReader) *FetchFormSettingsQuery {
	return &FetchFormSettingsQuery{reader: reader}
}

// Query returns stored settings, discovering them only when none exist.
func (q *FetchFormSettingsQuery) Query(ctx context.Context, msg FetchFormSettingsMessage) (core.FormSettings, error) {
	if q == nil || q.reader == nil {
		return core.FormSettings{}, queryDependencyError("query: form settings reader is required")
	}
	return q.reader.FetchFormSettings(ctx, core.FetchFormSettingsRequest{Handle: msg.Handle})
}

type CheckConnectionQuery struct {
	checker ConnectionChecker
}

func NewCheckConnectionQuery(checker ConnectionChecker) *CheckConnectionQuery {
	return &CheckConnectionQuery{checker: checker}
}

func (q *CheckConnectionQuery) Query(ctx context.Context, msg CheckConnectionMessage) (bool, error) {
	if q == nil || q.checker == nil {
		return false, queryDependencyError("query: connection checker is required")
	}
	return q.checker.CheckConnection(ctx, msg.Handle)
}

type ListIntegrationEventsQuery struct {
	lister EventLister
}

func NewListIntegrationEventsQuery(lister EventLister) *ListIntegrationEventsQuery {
	return &ListIntegrationEventsQuery{lister: lister}
}

func (q *ListIntegrationEventsQuery) Query(ctx context.Context, msg ListIntegrationEventsMessage) (EventPage, error) {
	if q == nil || q.lister == nil {
		return EventPage{}, queryDependencyError("query: event lister is required")
	}
	items, total, err := q.lister.ListEvents(ctx, msg.Filter)
	if err != nil {
		return EventPage{}, err
	}
	return EventPage{Items: items, Total: total}, nil
}

type RenderCaptchaQuery struct {
	service CaptchaService
}

func NewRenderCaptchaQuery(service CaptchaService) *RenderCaptchaQuery {
	return &RenderCaptchaQuery{service: service}
}

func (q *RenderCaptchaQuery) Query(ctx context.Context, msg RenderCaptchaMessage) (string, error) {
	if q == nil || q.service == nil {
		return "", queryDependencyError("query: captcha service is required")
	}
	return q.service.RenderCaptcha(ctx, msg.Handle, msg.Form)
}

type ValidateCaptchaQuery struct {
	service CaptchaService
}

func NewValidateCaptchaQuery(service CaptchaService) *ValidateCaptchaQuery {
	return &ValidateCaptchaQuery{service: service}
}

func (q *ValidateCaptchaQuery) Query(ctx context.Context, msg ValidateCaptchaMessage) (bool, error) {
	if q == nil || q.service == nil {
		return false, queryDependencyError("query: captcha service is required")
	}
	return q.service.ValidateCaptcha(ctx, msg.Handle, msg.Submission)
}
