package mailerlite

import (
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/transport"
)

const (
	ProviderID     = "mailerlite"
	DefaultBaseURL = "https://api.mailerlite.com/api/v2/"
	APIKeyHeader   = "X-MailerLite-ApiKey"
)

const (
	FieldEmail = "email"
	FieldName  = "name"
)

type Config struct {
	Handle  string
	APIKey  string
	BaseURL string
	// ListID is the subscriber group new subscribers are added to.
	ListID       string
	FieldMapping core.FieldMapping

	// Settings holds previously discovered lists. Submitted values are
	// coerced to the field types of ListID when it is known.
	Settings core.FormSettings

	Adapter              transport.Adapter
	Logger               core.Logger
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	// Throttle, when set, tracks the account quota across calls.
	Throttle transport.Throttle
}

func DefaultConfig() Config {
	return Config{
		Handle:  ProviderID,
		BaseURL: DefaultBaseURL,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return core.NewValidationError("providers/mailerlite: configuration is incomplete",
			goerrors.FieldError{Field: "api_key", Message: "api key is required"},
		)
	}
	return nil
}
