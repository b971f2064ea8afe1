package transport

import (
	"context"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// RetryAfterMetadataKey carries a server or throttle supplied wait, in
// milliseconds, on rate limited errors.
const RetryAfterMetadataKey = "retry_after_ms"

// Throttle guards calls made by a single client. BeforeCall may refuse a
// call before it is sent; AfterCall observes every response received.
type Throttle interface {
	BeforeCall(ctx context.Context) error
	AfterCall(ctx context.Context, res Response) error
}

func WithThrottle(throttle Throttle) ClientOption {
	return func(c *Client) {
		c.Throttle = throttle
	}
}

// RetryAfter parses a Retry-After header given either in seconds or as an
// HTTP date.
func RetryAfter(headers map[string]string, now time.Time) (time.Duration, bool) {
	raw := HeaderValue(headers, "retry-after")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	for _, layout := range []string{time.RFC1123, time.RFC1123Z} {
		if retryAt, err := time.Parse(layout, raw); err == nil {
			if retryAt.After(now) {
				return retryAt.Sub(now), true
			}
			return 0, false
		}
	}
	return 0, false
}

// RetryAfterDelay returns the wait carried by a rate limited error, if any.
func RetryAfterDelay(err error) (time.Duration, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || len(richErr.Metadata) == 0 {
		return 0, false
	}
	switch value := richErr.Metadata[RetryAfterMetadataKey].(type) {
	case int64:
		if value > 0 {
			return time.Duration(value) * time.Millisecond, true
		}
	case int:
		if value > 0 {
			return time.Duration(value) * time.Millisecond, true
		}
	}
	return 0, false
}

// HeaderValue looks a header up case-insensitively.
func HeaderValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
