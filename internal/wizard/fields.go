package wizard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anuntul/api/internal/catalog"
)

const isoDateLayout = "2006-01-02"

// FieldValueError reports a custom field value that does not match its
// descriptor's type contract.
type FieldValueError struct {
	FieldID string
	Message string
}

// Error implements the error interface.
func (e *FieldValueError) Error() string {
	return fmt.Sprintf("field %s: %s", e.FieldID, e.Message)
}

// NormalizeCustomFields type-checks and normalizes a raw customFields map
// (as decoded from JSON) against the descriptors of the selected subcategory.
// Keys with no matching descriptor are rejected, keeping the invariant that
// customFields only ever hold values for the current subcategory. The returned
// map uses the canonical Go shapes the engine and validators work with:
// string, float64, bool, ISO date string, or []string.
func NormalizeCustomFields(tree *catalog.Tree, subcategoryID string, raw map[string]any) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	sub := tree.Subcategory(subcategoryID)
	if sub == nil {
		return nil, &FieldValueError{FieldID: FormErrorKey, Message: "no subcategory selected for custom fields"}
	}

	out := make(map[string]any, len(raw))
	for key, value := range raw {
		field := tree.Field(subcategoryID, key)
		if field == nil {
			return nil, &FieldValueError{FieldID: key, Message: "unknown custom field for selected subcategory"}
		}
		normalized, err := normalizeFieldValue(field, value)
		if err != nil {
			return nil, err
		}
		if normalized == nil {
			continue
		}
		out[key] = normalized
	}
	return out, nil
}

func normalizeFieldValue(field *catalog.FieldDescriptor, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch field.Type {
	case catalog.FieldTypeText, catalog.FieldTypeTextarea:
		str, ok := value.(string)
		if !ok {
			return nil, typeError(field, "expected a string")
		}
		return str, nil

	case catalog.FieldTypeNumber:
		num, ok := asNumber(value)
		if !ok {
			return nil, typeError(field, "expected a number")
		}
		return num, nil

	case catalog.FieldTypeSelect:
		str, ok := value.(string)
		if !ok {
			return nil, typeError(field, "expected an option value")
		}
		if str == "" {
			// The empty option represents "unset".
			return nil, nil
		}
		if !hasOption(field, str) {
			return nil, typeError(field, fmt.Sprintf("%q is not a valid option", str))
		}
		return str, nil

	case catalog.FieldTypeMultiselect:
		values, err := asStringList(value)
		if err != nil {
			return nil, typeError(field, "expected a list of option values")
		}
		// Order is the user's check order, preserved as sent; only membership
		// is validated.
		for _, item := range values {
			if !hasOption(field, item) {
				return nil, typeError(field, fmt.Sprintf("%q is not a valid option", item))
			}
		}
		return values, nil

	case catalog.FieldTypeCheckbox:
		b, ok := value.(bool)
		if !ok {
			return nil, typeError(field, "expected a boolean")
		}
		return b, nil

	case catalog.FieldTypeDate:
		str, ok := value.(string)
		if !ok {
			return nil, typeError(field, "expected an ISO date string")
		}
		if str == "" {
			return nil, nil
		}
		if _, err := time.Parse(isoDateLayout, str); err != nil {
			return nil, typeError(field, "expected a date in YYYY-MM-DD format")
		}
		return str, nil
	}

	return nil, typeError(field, fmt.Sprintf("unsupported field type %s", field.Type))
}

func typeError(field *catalog.FieldDescriptor, message string) error {
	return &FieldValueError{FieldID: field.ID, Message: message}
}

func hasOption(field *catalog.FieldDescriptor, value string) bool {
	for _, opt := range field.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		// Numeric inputs often arrive as strings from form clients.
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asStringList(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("non-string entry in list")
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a list")
	}
}
