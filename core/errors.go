package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	IntegrationErrorBadInput        = "INTEGRATION_BAD_INPUT"
	IntegrationErrorNotFound        = "INTEGRATION_NOT_FOUND"
	IntegrationErrorUnauthorized    = "INTEGRATION_UNAUTHORIZED"
	IntegrationErrorForbidden       = "INTEGRATION_FORBIDDEN"
	IntegrationErrorRateLimited     = "INTEGRATION_RATE_LIMITED"
	IntegrationErrorExternalFailure = "INTEGRATION_EXTERNAL_FAILURE"
	IntegrationErrorPayloadMismatch = "INTEGRATION_PAYLOAD_MISMATCH"
	IntegrationErrorUnsupported     = "INTEGRATION_CAPABILITY_UNSUPPORTED"
	IntegrationErrorInternal        = "INTEGRATION_INTERNAL_ERROR"
)

// NewPayloadMismatchError reports a successful response that lacks the
// identifier the next step depends on. The sent payload and raw response are
// kept in the error metadata for diagnosis.
func NewPayloadMismatchError(entity string, payload map[string]any, response []byte) *goerrors.Error {
	entity = strings.TrimSpace(entity)
	return goerrors.New("missing identifier in "+entity+" create response", goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(IntegrationErrorPayloadMismatch).
		WithMetadata(map[string]any{
			"entity":   entity,
			"payload":  RedactSensitiveMap(payload),
			"response": string(response),
		})
}

func NewValidationError(message string, fields ...goerrors.FieldError) *goerrors.Error {
	err := goerrors.NewValidation(strings.TrimSpace(message), fields...)
	err.TextCode = IntegrationErrorBadInput
	err.Code = http.StatusBadRequest
	return err
}

func NewIntegrationNotFoundError(handle string) *goerrors.Error {
	return newIntegrationError(
		"integration not registered: "+strings.TrimSpace(handle),
		goerrors.CategoryNotFound,
		IntegrationErrorNotFound,
	).WithMetadata(map[string]any{"integration": strings.TrimSpace(handle)})
}

func NewCapabilityUnsupportedError(handle string, capability string) *goerrors.Error {
	return newIntegrationError(
		"integration "+strings.TrimSpace(handle)+" does not support "+strings.TrimSpace(capability),
		goerrors.CategoryOperation,
		IntegrationErrorUnsupported,
	)
}

// ClassifyError maps an error onto the delivery error taxonomy.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ErrorKindAPI
		}
		return ErrorKindInternal
	}
	if richErr.TextCode == IntegrationErrorPayloadMismatch {
		return ErrorKindPayloadMismatch
	}
	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return ErrorKindValidation
	case goerrors.CategoryExternal,
		goerrors.CategoryAuth,
		goerrors.CategoryAuthz,
		goerrors.CategoryRateLimit,
		goerrors.CategoryNotFound,
		goerrors.CategoryConflict:
		return ErrorKindAPI
	default:
		return ErrorKindInternal
	}
}

func integrationErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureIntegrationErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "integration") && strings.Contains(msg, "not registered"):
		return newIntegrationError(err.Error(), goerrors.CategoryNotFound, IntegrationErrorNotFound)
	case strings.Contains(msg, "unauthorized"):
		return newIntegrationError(err.Error(), goerrors.CategoryAuth, IntegrationErrorUnauthorized)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newIntegrationError(err.Error(), goerrors.CategoryRateLimit, IntegrationErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newIntegrationError(err.Error(), goerrors.CategoryBadInput, IntegrationErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureIntegrationErrorEnvelope(mapped)
}

func newIntegrationError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureIntegrationErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureIntegrationErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = integrationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIntegrationTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIntegrationTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return IntegrationErrorBadInput
	case goerrors.CategoryNotFound:
		return IntegrationErrorNotFound
	case goerrors.CategoryAuth:
		return IntegrationErrorUnauthorized
	case goerrors.CategoryAuthz:
		return IntegrationErrorForbidden
	case goerrors.CategoryRateLimit:
		return IntegrationErrorRateLimited
	case goerrors.CategoryExternal:
		return IntegrationErrorExternalFailure
	case goerrors.CategoryOperation:
		return IntegrationErrorUnsupported
	default:
		return IntegrationErrorInternal
	}
}

func integrationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}
