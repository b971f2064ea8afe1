package core

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// MapSubmissionValues resolves each mapped remote handle to the submitted
// value of its local field, coerced to the descriptor type. Empty values are
// skipped. Handles without a descriptor (fields added after the last
// discovery) pass through untyped.
func MapSubmissionValues(submission Submission, mapping FieldMapping, fields []FieldDescriptor) (map[string]any, error) {
	out := map[string]any{}
	if len(mapping) == 0 {
		return out, nil
	}
	index := make(map[string]FieldDescriptor, len(fields))
	for _, field := range fields {
		index[field.Handle] = field
	}

	remotes := make([]string, 0, len(mapping))
	for remote := range mapping {
		remotes = append(remotes, remote)
	}
	sort.Strings(remotes)

	var fieldErrors []goerrors.FieldError
	for _, remote := range remotes {
		remote = strings.TrimSpace(remote)
		local := strings.Trim(strings.TrimSpace(mapping[remote]), "{}")
		if remote == "" || local == "" {
			continue
		}
		raw, ok := submission.Value(local)
		if !ok || isEmptyValue(raw) {
			continue
		}
		descriptor, known := index[remote]
		if !known {
			out[remote] = raw
			continue
		}
		value, err := CoerceFieldValue(descriptor.Type, raw)
		if err != nil {
			fieldErrors = append(fieldErrors, goerrors.FieldError{
				Field:   remote,
				Message: err.Error(),
			})
			continue
		}
		out[remote] = value
	}
	if len(fieldErrors) > 0 {
		return out, NewValidationError("core: submitted values do not match remote field types", fieldErrors...)
	}
	return out, nil
}

// ValidateFieldMapping reports every required descriptor without a mapped
// local field.
func ValidateFieldMapping(entity string, mapping FieldMapping, fields []FieldDescriptor) error {
	var fieldErrors []goerrors.FieldError
	for _, field := range fields {
		if !field.Required {
			continue
		}
		if strings.TrimSpace(mapping[field.Handle]) != "" {
			continue
		}
		fieldErrors = append(fieldErrors, goerrors.FieldError{
			Field:   strings.TrimSpace(entity) + "." + field.Handle,
			Message: field.Name + " must be mapped",
		})
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return NewValidationError("core: required "+strings.TrimSpace(entity)+" fields are not mapped", fieldErrors...)
}

func CoerceFieldValue(fieldType FieldType, value any) (any, error) {
	switch fieldType {
	case FieldTypeNumber:
		return toIntValue(value)
	case FieldTypeFloat:
		return toFloatValue(value)
	case FieldTypeBoolean:
		return toBoolValue(value)
	case FieldTypeDateTime:
		return toDateTimeValue(value)
	default:
		return toStringValue(value), nil
	}
}

func isEmptyValue(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	default:
		return false
	}
}

func toStringValue(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case []string:
		return strings.Join(typed, ", ")
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, toStringValue(item))
		}
		return strings.Join(parts, ", ")
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(value)
	}
}

func toDateTimeValue(value any) (string, error) {
	switch typed := value.(type) {
	case time.Time:
		return typed.UTC().Format(time.RFC3339), nil
	case *time.Time:
		if typed == nil {
			return "", fmt.Errorf("core: nil time")
		}
		return typed.UTC().Format(time.RFC3339), nil
	case string:
		candidate := strings.TrimSpace(typed)
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, candidate); err == nil {
				return parsed.UTC().Format(time.RFC3339), nil
			}
		}
		return "", fmt.Errorf("core: parse string as datetime: %q", typed)
	default:
		unix, err := toIntValue(value)
		if err != nil {
			return "", fmt.Errorf("core: unsupported datetime conversion from %T", value)
		}
		return time.Unix(unix, 0).UTC().Format(time.RFC3339), nil
	}
}

// toIntValue rejects fractional input and values outside the int64 range.
func toIntValue(value any) (int64, error) {
	switch typed := value.(type) {
	case int:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case int64:
		return typed, nil
	case uint:
		return uintToInt(uint64(typed))
	case uint32:
		return int64(typed), nil
	case uint64:
		return uintToInt(typed)
	case float32:
		return floatToInt(float64(typed))
	case float64:
		return floatToInt(typed)
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed, nil
		}
		floatParsed, err := typed.Float64()
		if err != nil {
			return 0, fmt.Errorf("core: parse number as int: %q", typed.String())
		}
		return floatToInt(floatParsed)
	case string:
		candidate := strings.TrimSpace(typed)
		if parsed, err := strconv.ParseInt(candidate, 10, 64); err == nil {
			return parsed, nil
		}
		floatParsed, err := strconv.ParseFloat(candidate, 64)
		if err != nil {
			return 0, fmt.Errorf("core: parse string as int: %q", typed)
		}
		return floatToInt(floatParsed)
	default:
		return 0, fmt.Errorf("core: unsupported int conversion from %T", value)
	}
}

func uintToInt(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, fmt.Errorf("core: %d overflows int64", value)
	}
	return int64(value), nil
}

// floatToInt accepts whole numbers only, so "12.0" maps and "12.7" does not.
func floatToInt(value float64) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value != math.Trunc(value) {
		return 0, fmt.Errorf("core: %v is not a whole number", value)
	}
	if value < math.MinInt64 || value >= math.MaxInt64 {
		return 0, fmt.Errorf("core: %v overflows int64", value)
	}
	return int64(value), nil
}

func toFloatValue(value any) (float64, error) {
	switch typed := value.(type) {
	case int:
		return float64(typed), nil
	case int32:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	case uint:
		return float64(typed), nil
	case uint64:
		return float64(typed), nil
	case float32:
		return float64(typed), nil
	case float64:
		return typed, nil
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, fmt.Errorf("core: parse number as float: %w", err)
		}
		return parsed, nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, fmt.Errorf("core: parse string as float: %q", typed)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("core: unsupported float conversion from %T", value)
	}
}

func toBoolValue(value any) (bool, error) {
	switch typed := value.(type) {
	case bool:
		return typed, nil
	case int:
		return typed != 0, nil
	case int64:
		return typed != 0, nil
	case float64:
		return typed != 0, nil
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return false, fmt.Errorf("core: parse number as bool: %w", err)
		}
		return parsed != 0, nil
	case string:
		switch strings.TrimSpace(strings.ToLower(typed)) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		default:
			return false, fmt.Errorf("core: parse string as bool: %q", typed)
		}
	default:
		return false, fmt.Errorf("core: unsupported bool conversion from %T", value)
	}
}
