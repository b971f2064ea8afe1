package dynamics365

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/transport"
)

// FetchFormSettings discovers the fields of every supported entity. One
// option cache is shared by the whole run. On failure the entities
// discovered so far are returned with the error.
func (p *Provider) FetchFormSettings(ctx context.Context) (core.FormSettings, error) {
	settings := core.FormSettings{Entities: map[string][]core.FieldDescriptor{}}
	client, err := p.client(ctx)
	if err != nil {
		return settings, err
	}

	cache := NewEntityOptionCache()
	for _, entity := range Entities {
		fields, err := DiscoverEntityFields(ctx, client, entity, cache)
		if err != nil {
			p.dropClientOnUnauthorized(err)
			p.logger.WithContext(ctx).Error("dynamics365 schema discovery failed",
				"integration", p.Handle(),
				"entity", entity,
				"error", err,
			)
			return settings, err
		}
		settings.Entities[entity] = fields
	}
	for _, target := range cache.Truncated() {
		p.logger.WithContext(ctx).Warn("dynamics365 lookup options truncated",
			"integration", p.Handle(),
			"target", target,
			"max_pages", maxTargetPages,
		)
	}
	p.storeSettings(settings)
	return settings, nil
}

// SendPayload creates the enabled records in contact, account, lead,
// opportunity order. Each created record id is bound onto the records that
// follow it. A create response without an id aborts the remaining steps.
// Records already created stay in place.
func (p *Provider) SendPayload(ctx context.Context, req core.DeliveryRequest) core.DeliveryResult {
	records := map[string]string{}
	if err := p.Validate(); err != nil {
		return core.Failed(err, records)
	}

	settings := p.Settings()
	payloads := make(map[string]map[string]any, len(Entities))
	for _, entity := range Entities {
		mapping := p.config.Mapping(entity)
		values, err := core.MapSubmissionValues(req.Submission, mapping.Fields, settings.Fields(entity))
		if err != nil && mapping.Enabled {
			return core.Failed(err, records)
		}
		payloads[entity] = values
	}

	var client *transport.Client
	for _, entity := range Entities {
		if !p.config.Mapping(entity).Enabled {
			continue
		}
		if client == nil {
			var err error
			if client, err = p.client(ctx); err != nil {
				return core.Failed(err, records)
			}
		}

		payload := payloads[entity]
		bindRelated(entity, payload, records)
		endpoint := createPath(entity)

		allowed, err := core.AllowStep(ctx, req.Policy, core.DeliveryStep{
			Integration: p.Handle(),
			Entity:      entity,
			Endpoint:    endpoint,
			Payload:     payload,
		})
		if err != nil {
			return core.Failed(err, records)
		}
		if !allowed {
			return core.Suppressed(records)
		}

		id, err := p.create(ctx, client, entity, endpoint, payload)
		if err != nil {
			return core.Failed(err, records)
		}
		records[entity] = id
	}
	return core.Delivered(records)
}

func (p *Provider) create(ctx context.Context, client *transport.Client, entity string, endpoint string, payload map[string]any) (string, error) {
	res, err := client.PostJSON(ctx, endpoint, payload, map[string]string{
		"Prefer": "return=representation",
	})
	if err != nil {
		p.dropClientOnUnauthorized(err)
		return "", err
	}

	var created map[string]any
	if err := transport.DecodeJSON(res, &created); err != nil {
		return "", err
	}
	id := ""
	if value, ok := created[entity+"id"]; ok && value != nil {
		id = strings.TrimSpace(fmt.Sprint(value))
	}
	if id == "" {
		p.logger.WithContext(ctx).Error("dynamics365 create response missing identifier",
			"integration", p.Handle(),
			"entity", entity,
			"payload", core.RedactSensitiveMap(payload),
			"response", string(res.Body),
		)
		return "", core.NewPayloadMismatchError(entity, payload, res.Body)
	}
	return id, nil
}

func createPath(entity string) string {
	return entityCollections[entity] + "?$select=" + entity + "id"
}

// bindRelated points payload at the records created earlier in the same
// delivery.
func bindRelated(entity string, payload map[string]any, records map[string]string) {
	contactID := records[EntityContact]
	accountID := records[EntityAccount]
	switch entity {
	case EntityAccount:
		if contactID != "" {
			payload["primarycontactid"+core.BindSuffix] = bindValue(EntityContact, contactID)
		}
	case EntityLead:
		if contactID != "" {
			payload["parentcontactid"+core.BindSuffix] = bindValue(EntityContact, contactID)
		}
	case EntityOpportunity:
		if contactID != "" {
			payload["parentcontactid"+core.BindSuffix] = bindValue(EntityContact, contactID)
		}
		if accountID != "" {
			payload["parentaccountid"+core.BindSuffix] = bindValue(EntityAccount, accountID)
		}
	}
}

func bindValue(entity string, id string) string {
	return entityCollections[entity] + "(" + id + ")"
}
