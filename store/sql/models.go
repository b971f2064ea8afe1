package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type integrationEventRecord struct {
	bun.BaseModel `bun:"table:integration_events,alias:ie"`

	ID          string         `bun:"id,pk"`
	Integration string         `bun:"integration,notnull"`
	ProviderID  string         `bun:"provider_id,notnull"`
	Operation   string         `bun:"operation,notnull"`
	Status      string         `bun:"status,notnull"`
	ErrorKind   string         `bun:"error_kind,notnull"`
	Message     string         `bun:"message,notnull"`
	Metadata    map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// formSettingsRecord keeps the discovered settings as a JSON document in a
// text column so both dialects share one model.
type formSettingsRecord struct {
	bun.BaseModel `bun:"table:integration_form_settings,alias:ifs"`

	ID          string    `bun:"id,pk"`
	Integration string    `bun:"integration,notnull"`
	ProviderID  string    `bun:"provider_id,notnull"`
	Settings    string    `bun:"settings,notnull"`
	FetchedAt   time.Time `bun:"fetched_at,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
