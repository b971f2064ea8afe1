package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func eventHandlers() repository.ModelHandlers[*integrationEventRecord] {
	return repository.ModelHandlers[*integrationEventRecord]{
		NewRecord: func() *integrationEventRecord {
			return &integrationEventRecord{}
		},
		GetID: func(record *integrationEventRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *integrationEventRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *integrationEventRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func formSettingsHandlers() repository.ModelHandlers[*formSettingsRecord] {
	return repository.ModelHandlers[*formSettingsRecord]{
		NewRecord: func() *formSettingsRecord {
			return &formSettingsRecord{}
		},
		GetID: func(record *formSettingsRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *formSettingsRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "integration"
		},
		GetIdentifierValue: func(record *formSettingsRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.Integration)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
