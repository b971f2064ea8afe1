package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-form-integrations/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// FormSettingsStore keeps the latest discovered settings per integration.
type FormSettingsStore struct {
	db   *bun.DB
	repo repository.Repository[*formSettingsRecord]
	now  func() time.Time
}

func NewFormSettingsStore(db *bun.DB) (*FormSettingsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*formSettingsRecord](db, formSettingsHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid form settings repository wiring: %w", err)
		}
	}
	return &FormSettingsStore{db: db, repo: repo, now: time.Now}, nil
}

func (s *FormSettingsStore) Get(ctx context.Context, integration string) (core.FormSettingsSnapshot, error) {
	if s == nil || s.db == nil {
		return core.FormSettingsSnapshot{}, fmt.Errorf("sqlstore: form settings store is not configured")
	}
	integration = strings.TrimSpace(integration)
	if integration == "" {
		return core.FormSettingsSnapshot{}, core.NewValidationError("sqlstore: integration handle is required",
			goerrors.FieldError{Field: "integration", Message: "required"})
	}
	record, err := findFormSettings(ctx, s.db, integration)
	if err != nil {
		return core.FormSettingsSnapshot{}, err
	}
	if record == nil {
		return core.FormSettingsSnapshot{}, settingsNotFound(integration)
	}
	return record.toDomain()
}

// Save upserts the snapshot by integration handle.
func (s *FormSettingsStore) Save(ctx context.Context, snapshot core.FormSettingsSnapshot) (core.FormSettingsSnapshot, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.FormSettingsSnapshot{}, fmt.Errorf("sqlstore: form settings store is not configured")
	}
	snapshot.Integration = strings.TrimSpace(snapshot.Integration)
	snapshot.ProviderID = strings.TrimSpace(snapshot.ProviderID)
	if snapshot.Integration == "" {
		return core.FormSettingsSnapshot{}, core.NewValidationError("sqlstore: integration handle is required",
			goerrors.FieldError{Field: "integration", Message: "required"})
	}
	now := s.now().UTC()
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = now
	}
	snapshot.FetchedAt = snapshot.FetchedAt.UTC()

	encoded, err := json.Marshal(snapshot.Settings)
	if err != nil {
		return core.FormSettingsSnapshot{}, goerrors.Wrap(err, goerrors.CategoryInternal, "sqlstore: encode form settings")
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findFormSettings(ctx, tx, snapshot.Integration)
		if err != nil {
			return err
		}
		if record == nil {
			record = &formSettingsRecord{
				ID:          uuid.NewString(),
				Integration: snapshot.Integration,
				ProviderID:  snapshot.ProviderID,
				Settings:    string(encoded),
				FetchedAt:   snapshot.FetchedAt,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			_, insertErr := s.repo.CreateTx(ctx, tx, record)
			return insertErr
		}
		record.ProviderID = snapshot.ProviderID
		record.Settings = string(encoded)
		record.FetchedAt = snapshot.FetchedAt
		record.UpdatedAt = now
		_, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return updateErr
	})
	if err != nil {
		return core.FormSettingsSnapshot{}, err
	}
	snapshot.Settings = snapshot.Settings.Clone()
	return snapshot, nil
}

func findFormSettings(ctx context.Context, db bun.IDB, integration string) (*formSettingsRecord, error) {
	record := &formSettingsRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.integration = ?", integration).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *formSettingsRecord) toDomain() (core.FormSettingsSnapshot, error) {
	out := core.FormSettingsSnapshot{
		Integration: r.Integration,
		ProviderID:  r.ProviderID,
		FetchedAt:   r.FetchedAt.UTC(),
	}
	if strings.TrimSpace(r.Settings) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Settings), &out.Settings); err != nil {
		return core.FormSettingsSnapshot{}, goerrors.Wrap(err, goerrors.CategoryInternal, "sqlstore: decode form settings").
			WithMetadata(map[string]any{"integration": r.Integration})
	}
	return out, nil
}

func settingsNotFound(integration string) *goerrors.Error {
	return goerrors.New("form settings not found for "+integration, goerrors.CategoryNotFound).
		WithTextCode(core.IntegrationErrorNotFound).
		WithMetadata(map[string]any{"integration": integration})
}
