package dynamics365

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/goliatone/go-form-integrations/core"
)

const (
	lookupODataType   = "#Microsoft.Dynamics.CRM.LookupAttributeMetadata"
	requiredLevelNone = "None"
)

var excludedAttributeTypes = map[string]struct{}{
	"Virtual":          {},
	"Uniqueidentifier": {},
	"Customer":         {},
	"EntityName":       {},
}

var attributeFieldTypes = map[string]core.FieldType{
	"Decimal":  core.FieldTypeFloat,
	"Double":   core.FieldTypeFloat,
	"Money":    core.FieldTypeFloat,
	"BigInt":   core.FieldTypeNumber,
	"Integer":  core.FieldTypeNumber,
	"Boolean":  core.FieldTypeBoolean,
	"DateTime": core.FieldTypeDateTime,
}

// JSONGetter is the read side of the Web API client.
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, out any) error
}

type localizedLabel struct {
	UserLocalizedLabel *struct {
		Label string `json:"Label"`
	} `json:"UserLocalizedLabel"`
}

func (l localizedLabel) text() string {
	if l.UserLocalizedLabel == nil {
		return ""
	}
	return strings.TrimSpace(l.UserLocalizedLabel.Label)
}

type attributeMetadata struct {
	ODataType        string         `json:"@odata.type"`
	AttributeType    string         `json:"AttributeType"`
	LogicalName      string         `json:"LogicalName"`
	IsValidForCreate bool           `json:"IsValidForCreate"`
	DisplayName      localizedLabel `json:"DisplayName"`
	RequiredLevel    struct {
		Value string `json:"Value"`
	} `json:"RequiredLevel"`
}

func (a attributeMetadata) isLookup() bool {
	if a.ODataType == lookupODataType {
		return true
	}
	return a.AttributeType == "Lookup" || a.AttributeType == "Owner"
}

type optionSet struct {
	Options []struct {
		Value json.Number    `json:"Value"`
		Label localizedLabel `json:"Label"`
	} `json:"Options"`
}

type picklistAttribute struct {
	LogicalName     string     `json:"LogicalName"`
	OptionSet       *optionSet `json:"OptionSet"`
	GlobalOptionSet *optionSet `json:"GlobalOptionSet"`
}

func (p picklistAttribute) options() []core.FieldOption {
	set := p.GlobalOptionSet
	if set == nil || len(set.Options) == 0 {
		set = p.OptionSet
	}
	if set == nil {
		return nil
	}
	out := make([]core.FieldOption, 0, len(set.Options))
	for _, option := range set.Options {
		out = append(out, core.FieldOption{
			Label: option.Label.text(),
			Value: option.Value.String(),
		})
	}
	return out
}

func metadataPath(entity string) string {
	return "EntityDefinitions(LogicalName='" + entity + "')"
}

func attributesPath(entity string) string {
	return metadataPath(entity) +
		"?$select=Attributes&$expand=Attributes($select=AttributeType,IsCustomAttribute,IsValidForCreate," +
		"IsValidForUpdate,CanBeSecuredForCreate,CanBeSecuredForUpdate,LogicalName,SchemaName,DisplayName,RequiredLevel)"
}

func picklistPath(entity string) string {
	return metadataPath(entity) +
		"/Attributes/Microsoft.Dynamics.CRM.PicklistAttributeMetadata" +
		"?$select=LogicalName&$expand=OptionSet($select=Options),GlobalOptionSet($select=Options)"
}

func lookupPath(entity string) string {
	return metadataPath(entity) +
		"/Attributes/Microsoft.Dynamics.CRM.LookupAttributeMetadata?$select=LogicalName,Targets"
}

// fieldIndex keeps descriptors keyed by logical name in first-seen order.
// A repeated logical name replaces the earlier descriptor.
type fieldIndex struct {
	order  []string
	fields map[string]*core.FieldDescriptor
}

func newFieldIndex() *fieldIndex {
	return &fieldIndex{fields: map[string]*core.FieldDescriptor{}}
}

func (i *fieldIndex) put(logicalName string, field core.FieldDescriptor) {
	if _, ok := i.fields[logicalName]; !ok {
		i.order = append(i.order, logicalName)
	}
	i.fields[logicalName] = &field
}

func (i *fieldIndex) get(logicalName string) (*core.FieldDescriptor, bool) {
	field, ok := i.fields[logicalName]
	return field, ok
}

// sorted returns the descriptors ordered by display name using an ordinal
// compare.
func (i *fieldIndex) sorted() []core.FieldDescriptor {
	out := make([]core.FieldDescriptor, 0, len(i.order))
	for _, name := range i.order {
		out = append(out, *i.fields[name])
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Name < out[b].Name
	})
	return out
}

// DiscoverEntityFields returns the creatable fields of entity sorted by
// display name. Lookup fields carry the core.BindSuffix on their handle and
// list the records they can bind to. Target collections are fetched through
// cache, so a cache shared across entities fetches each target once.
func DiscoverEntityFields(ctx context.Context, client JSONGetter, entity string, cache *EntityOptionCache) ([]core.FieldDescriptor, error) {
	entity = strings.TrimSpace(entity)
	if cache == nil {
		cache = NewEntityOptionCache()
	}

	var definition struct {
		Attributes []attributeMetadata `json:"Attributes"`
	}
	if err := client.GetJSON(ctx, attributesPath(entity), &definition); err != nil {
		return nil, err
	}

	index := newFieldIndex()
	for _, attribute := range definition.Attributes {
		label := attribute.DisplayName.text()
		logicalName := strings.TrimSpace(attribute.LogicalName)
		if label == "" || logicalName == "" || !attribute.IsValidForCreate {
			continue
		}
		if _, excluded := excludedAttributeTypes[attribute.AttributeType]; excluded {
			continue
		}
		handle := logicalName
		if attribute.isLookup() {
			handle += core.BindSuffix
		}
		fieldType, ok := attributeFieldTypes[attribute.AttributeType]
		if !ok {
			fieldType = core.FieldTypeString
		}
		index.put(logicalName, core.FieldDescriptor{
			Handle:   handle,
			Name:     label,
			Type:     fieldType,
			Required: attribute.RequiredLevel.Value != "" && attribute.RequiredLevel.Value != requiredLevelNone,
		})
	}

	if err := attachPicklistOptions(ctx, client, entity, index); err != nil {
		return nil, err
	}
	if err := attachLookupOptions(ctx, client, entity, index, cache); err != nil {
		return nil, err
	}
	return index.sorted(), nil
}

func attachPicklistOptions(ctx context.Context, client JSONGetter, entity string, index *fieldIndex) error {
	var payload struct {
		Value []picklistAttribute `json:"value"`
	}
	if err := client.GetJSON(ctx, picklistPath(entity), &payload); err != nil {
		return err
	}
	for _, picklist := range payload.Value {
		field, ok := index.get(strings.TrimSpace(picklist.LogicalName))
		if !ok {
			continue
		}
		if options := picklist.options(); len(options) > 0 {
			field.Options = options
		}
	}
	return nil
}
