package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-form-integrations/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultEventPageSize = 50
	maxEventPageSize     = 500
)

// EventStore is the bun-backed integration event log.
type EventStore struct {
	repo repository.Repository[*integrationEventRecord]
	now  func() time.Time
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*integrationEventRecord](db, eventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid integration event repository wiring: %w", err)
		}
	}
	return &EventStore{repo: repo, now: time.Now}, nil
}

func (s *EventStore) Record(ctx context.Context, event core.IntegrationEvent) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	event.Integration = strings.TrimSpace(event.Integration)
	event.Operation = strings.TrimSpace(event.Operation)
	event.Status = strings.TrimSpace(event.Status)
	if event.Integration == "" {
		return fmt.Errorf("sqlstore: event integration is required")
	}
	if event.Operation == "" || event.Status == "" {
		return fmt.Errorf("sqlstore: event operation and status are required")
	}

	id := strings.TrimSpace(event.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := event.CreatedAt.UTC()
	if event.CreatedAt.IsZero() {
		createdAt = s.now().UTC()
	}
	record := &integrationEventRecord{
		ID:          id,
		Integration: event.Integration,
		ProviderID:  strings.TrimSpace(event.ProviderID),
		Operation:   event.Operation,
		Status:      event.Status,
		ErrorKind:   string(event.ErrorKind),
		Message:     strings.TrimSpace(event.Message),
		Metadata:    core.RedactSensitiveMap(event.Metadata),
		CreatedAt:   createdAt,
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

// List returns the newest events first together with the total number of
// events matching the filter.
func (s *EventStore) List(ctx context.Context, filter core.EventFilter) ([]core.IntegrationEvent, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: event store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventPageSize
	}
	if limit > maxEventPageSize {
		limit = maxEventPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, offset),
	}
	if integration := strings.TrimSpace(filter.Integration); integration != "" {
		selectors = append(selectors, repository.SelectBy("integration", "=", integration))
	}
	if operation := strings.TrimSpace(filter.Operation); operation != "" {
		selectors = append(selectors, repository.SelectBy("operation", "=", operation))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, 0, err
	}
	items := make([]core.IntegrationEvent, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return items, total, nil
}

func (r *integrationEventRecord) toDomain() core.IntegrationEvent {
	if r == nil {
		return core.IntegrationEvent{}
	}
	return core.IntegrationEvent{
		ID:          r.ID,
		Integration: r.Integration,
		ProviderID:  r.ProviderID,
		Operation:   r.Operation,
		Status:      r.Status,
		ErrorKind:   core.ErrorKind(r.ErrorKind),
		Message:     r.Message,
		Metadata:    copyAnyMap(r.Metadata),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
