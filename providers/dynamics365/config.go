package dynamics365

import (
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/transport"
)

const (
	ProviderID = "dynamics365"
	// APIPath is appended to the organization domain to form the Web API base.
	APIPath = "api/data/v9.0/"
	// ProbePath is the cheap authenticated request issued when a client is built.
	ProbePath = "contacts?$top=1"
)

const (
	EntityContact     = "contact"
	EntityAccount     = "account"
	EntityLead        = "lead"
	EntityOpportunity = "opportunity"
)

// Entities lists the supported entity kinds in delivery order. Later kinds
// bind to records created by earlier ones.
var Entities = []string{EntityContact, EntityAccount, EntityLead, EntityOpportunity}

var entityCollections = map[string]string{
	EntityContact:     "contacts",
	EntityAccount:     "accounts",
	EntityLead:        "leads",
	EntityOpportunity: "opportunities",
}

type Config struct {
	Handle       string
	ClientID     string
	ClientSecret string
	// APIDomain is the organization root, e.g. https://org.crm.dynamics.com.
	APIDomain string
	TenantID  string

	// Tokens takes precedence. Otherwise a refresh token source is built
	// from RefreshToken, or a static source from AccessToken.
	Tokens       core.TokenSource
	AccessToken  string
	RefreshToken string
	TokenURL     string

	Adapter              transport.Adapter
	Logger               core.Logger
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	Throttle             transport.Throttle

	// Settings holds previously discovered settings. Submitted values are
	// coerced to their descriptor types when settings are known.
	Settings core.FormSettings

	Contact     core.EntityMapping
	Account     core.EntityMapping
	Lead        core.EntityMapping
	Opportunity core.EntityMapping
}

func DefaultConfig() Config {
	return Config{
		Handle:   ProviderID,
		TenantID: defaultTenant,
	}
}

func (c Config) Mapping(entity string) core.EntityMapping {
	switch entity {
	case EntityContact:
		return c.Contact
	case EntityAccount:
		return c.Account
	case EntityLead:
		return c.Lead
	case EntityOpportunity:
		return c.Opportunity
	default:
		return core.EntityMapping{}
	}
}

// BaseURL returns the Web API root for the configured organization.
func (c Config) BaseURL() string {
	domain := strings.TrimRight(strings.TrimSpace(c.APIDomain), "/")
	if domain == "" {
		return ""
	}
	return domain + "/" + APIPath
}

// Validate reports missing credentials before any request is made.
func (c Config) Validate() error {
	var fields []goerrors.FieldError
	if strings.TrimSpace(c.ClientID) == "" {
		fields = append(fields, goerrors.FieldError{Field: "client_id", Message: "client id is required"})
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		fields = append(fields, goerrors.FieldError{Field: "client_secret", Message: "client secret is required"})
	}
	if strings.TrimSpace(c.APIDomain) == "" {
		fields = append(fields, goerrors.FieldError{Field: "api_domain", Message: "api domain is required"})
	}
	if c.Tokens == nil && strings.TrimSpace(c.AccessToken) == "" && strings.TrimSpace(c.RefreshToken) == "" {
		fields = append(fields, goerrors.FieldError{Field: "token", Message: "an access or refresh token is required"})
	}
	if len(fields) == 0 {
		return nil
	}
	return core.NewValidationError("providers/dynamics365: configuration is incomplete", fields...)
}
