package transport

import (
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-form-integrations/core"
)

const maxErrorBodyBytes = 2048

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// StatusError converts a non-2xx response into a categorized error. The
// remote status and a bounded copy of the body are kept in metadata.
func StatusError(method string, path string, res Response) error {
	category := statusCategory(res.StatusCode)
	metadata := map[string]any{
		"status_code": res.StatusCode,
		"path":        strings.TrimSpace(path),
		"response":    truncate(string(res.Body)),
	}
	if res.StatusCode == http.StatusTooManyRequests {
		if wait, ok := RetryAfter(res.Headers, time.Now().UTC()); ok {
			metadata[RetryAfterMetadataKey] = wait.Milliseconds()
		}
	}
	return transportError(
		"transport: "+strings.ToUpper(strings.TrimSpace(method))+" "+strings.TrimSpace(path)+
			" returned "+http.StatusText(res.StatusCode),
		category,
		statusCode(category),
		metadata,
	)
}

// RemoteStatus returns the remote HTTP status carried by err, or 0.
func RemoteStatus(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || len(richErr.Metadata) == 0 {
		return 0
	}
	status, _ := richErr.Metadata["status_code"].(int)
	return status
}

func IsUnauthorized(err error) bool {
	return RemoteStatus(err) == http.StatusUnauthorized
}

func statusCategory(status int) goerrors.Category {
	switch {
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case status == http.StatusForbidden:
		return goerrors.CategoryAuthz
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status == http.StatusConflict:
		return goerrors.CategoryConflict
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	default:
		return goerrors.CategoryExternal
	}
}

func statusCode(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.IntegrationErrorBadInput
	case goerrors.CategoryAuth:
		return core.IntegrationErrorUnauthorized
	case goerrors.CategoryAuthz:
		return core.IntegrationErrorForbidden
	case goerrors.CategoryNotFound:
		return core.IntegrationErrorNotFound
	case goerrors.CategoryRateLimit:
		return core.IntegrationErrorRateLimited
	case goerrors.CategoryExternal, goerrors.CategoryConflict:
		return core.IntegrationErrorExternalFailure
	default:
		return core.IntegrationErrorInternal
	}
}
