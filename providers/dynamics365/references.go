package dynamics365

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-form-integrations/core"
)

const (
	targetSystemUser   = "systemuser"
	applicationIDField = "applicationid"
	maxTargetPages     = 50
)

// TargetSchema describes how records of a lookup target become options.
type TargetSchema struct {
	Collection string
	LabelField string
	ValueField string
}

// TargetSchemas lists the lookup targets whose records can be offered as
// options. Lookups to any other target get no options.
var TargetSchemas = map[string]TargetSchema{
	"businessunit":        {Collection: "businessunits", LabelField: "name", ValueField: "businessunitid"},
	"systemuser":          {Collection: "systemusers", LabelField: "fullname", ValueField: "systemuserid"},
	"account":             {Collection: "accounts", LabelField: "name", ValueField: "accountid"},
	"contact":             {Collection: "contacts", LabelField: "fullname", ValueField: "contactid"},
	"lead":                {Collection: "leads", LabelField: "fullname", ValueField: "leadid"},
	"transactioncurrency": {Collection: "transactioncurrencies", LabelField: "currencyname", ValueField: "transactioncurrencyid"},
	"team":                {Collection: "teams", LabelField: "name", ValueField: "teamid"},
	"campaign":            {Collection: "campaigns", LabelField: "fullname", ValueField: "campaignid"},
	"pricelevel":          {Collection: "pricelevels", LabelField: "name", ValueField: "pricelevelid"},
}

// EntityOptionCache holds resolved target options for one discovery run.
// Create a fresh cache per run; entries are never invalidated.
type EntityOptionCache struct {
	mu        sync.Mutex
	options   map[string][]core.FieldOption
	truncated map[string]bool
}

func NewEntityOptionCache() *EntityOptionCache {
	return &EntityOptionCache{
		options:   map[string][]core.FieldOption{},
		truncated: map[string]bool{},
	}
}

func (c *EntityOptionCache) Lookup(target string) ([]core.FieldOption, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	options, ok := c.options[target]
	return options, ok
}

func (c *EntityOptionCache) Store(target string, options []core.FieldOption) {
	c.mu.Lock()
	c.options[target] = options
	c.mu.Unlock()
}

// Truncated lists the targets whose collection had more pages than
// maxTargetPages allows.
func (c *EntityOptionCache) Truncated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.truncated))
	for target := range c.truncated {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

func (c *EntityOptionCache) markTruncated(target string) {
	c.mu.Lock()
	c.truncated[target] = true
	c.mu.Unlock()
}

// Targets returns how many targets have been resolved.
func (c *EntityOptionCache) Targets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.options)
}

type lookupAttribute struct {
	LogicalName string   `json:"LogicalName"`
	Targets     []string `json:"Targets"`
}

func attachLookupOptions(ctx context.Context, client JSONGetter, entity string, index *fieldIndex, cache *EntityOptionCache) error {
	var payload struct {
		Value []lookupAttribute `json:"value"`
	}
	if err := client.GetJSON(ctx, lookupPath(entity), &payload); err != nil {
		return err
	}

	for _, attribute := range payload.Value {
		for _, target := range attribute.Targets {
			schema, known := TargetSchemas[target]
			if !known {
				continue
			}
			if _, cached := cache.Lookup(target); cached {
				continue
			}
			options, complete, err := fetchTargetOptions(ctx, client, target, schema)
			if err != nil {
				return err
			}
			if !complete {
				cache.markTruncated(target)
			}
			cache.Store(target, options)
		}
	}

	for _, attribute := range payload.Value {
		field, ok := index.get(strings.TrimSpace(attribute.LogicalName))
		if !ok {
			continue
		}
		var options []core.FieldOption
		for _, target := range attribute.Targets {
			cached, _ := cache.Lookup(target)
			options = append(options, cached...)
		}
		if len(options) > 0 {
			field.Options = options
		}
	}
	return nil
}

// fetchTargetOptions reads the target collection, following server paging
// links for at most maxTargetPages pages. complete is false when pages remain.
func fetchTargetOptions(ctx context.Context, client JSONGetter, target string, schema TargetSchema) (options []core.FieldOption, complete bool, err error) {
	selected := []string{schema.LabelField, schema.ValueField}
	if target == targetSystemUser {
		selected = append(selected, applicationIDField)
	}
	next := schema.Collection + "?$select=" + strings.Join(selected, ",")

	options = []core.FieldOption{}
	for page := 0; next != "" && page < maxTargetPages; page++ {
		var payload struct {
			Value    []map[string]any `json:"value"`
			NextLink string           `json:"@odata.nextLink"`
		}
		if err := client.GetJSON(ctx, next, &payload); err != nil {
			return nil, false, err
		}
		for _, record := range payload.Value {
			// Application users are service accounts.
			if target == targetSystemUser && recordString(record, applicationIDField) != "" {
				continue
			}
			options = append(options, core.FieldOption{
				Label: recordString(record, schema.LabelField),
				Value: schema.Collection + "(" + recordString(record, schema.ValueField) + ")",
			})
		}
		next = strings.TrimSpace(payload.NextLink)
	}
	return options, next == "", nil
}

func recordString(record map[string]any, key string) string {
	value, ok := record[key]
	if !ok || value == nil {
		return ""
	}
	if text, ok := value.(string); ok {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
